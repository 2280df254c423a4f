package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// Segment es un fragmento de salida clasificado como razonamiento o texto.
type Segment struct {
	Reasoning bool
	Text      string
}

// ThinkExtractor separa el contenido entre <think> y </think> de un stream de texto.
// Las etiquetas pueden llegar partidas entre deltas.
type ThinkExtractor struct {
	inThink bool
	pending string
}

// Push procesa un delta y devuelve los segmentos que ya se pueden emitir.
func (x *ThinkExtractor) Push(delta string) []Segment {
	buf := x.pending + delta
	x.pending = ""

	var out []Segment
	for buf != "" {
		tag := thinkOpen
		if x.inThink {
			tag = thinkClose
		}

		if i := strings.Index(buf, tag); i >= 0 {
			out = appendSegment(out, x.inThink, buf[:i])
			buf = buf[i+len(tag):]
			x.inThink = !x.inThink
			continue
		}

		// Retener un posible prefijo de la etiqueta al final del buffer.
		keep := partialSuffix(buf, tag)
		out = appendSegment(out, x.inThink, buf[:len(buf)-keep])
		x.pending = buf[len(buf)-keep:]
		break
	}
	return out
}

// Flush emite lo que quedó retenido al terminar el stream.
func (x *ThinkExtractor) Flush() []Segment {
	rest := x.pending
	x.pending = ""
	return appendSegment(nil, x.inThink, rest)
}

// ExtractReasoning separa razonamiento y texto de una respuesta completa.
func ExtractReasoning(content string) (reasoning, text string) {
	var x ThinkExtractor
	segs := append(x.Push(content), x.Flush()...)
	var r, t strings.Builder
	for _, s := range segs {
		if s.Reasoning {
			r.WriteString(s.Text)
		} else {
			t.WriteString(s.Text)
		}
	}
	return strings.TrimSpace(r.String()), strings.TrimSpace(t.String())
}

func appendSegment(out []Segment, reasoning bool, text string) []Segment {
	if text == "" {
		return out
	}
	if n := len(out); n > 0 && out[n-1].Reasoning == reasoning {
		out[n-1].Text += text
		return out
	}
	return append(out, Segment{Reasoning: reasoning, Text: text})
}

// partialSuffix devuelve cuántos bytes finales de s son prefijo de tag.
func partialSuffix(s, tag string) int {
	limit := len(tag) - 1
	if len(s) < limit {
		limit = len(s)
	}
	for n := limit; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
