package llm

import "sort"

const (
	ModelChat          = "chat-model"
	ModelChatReasoning = "chat-model-reasoning"
	ModelTitle         = "title-model"
	ModelArtifact      = "artifact-model"
)

// Model describe un modelo seleccionable y el cliente que lo atiende.
type Model struct {
	ID          string
	Name        string
	Description string
	// Reasoning indica que la salida trae razonamiento entre etiquetas <think>.
	Reasoning bool
	Client    ChatClient
}

// Registry resuelve los ids de modelo que envía el front end.
type Registry struct {
	models    map[string]Model
	defaultID string
}

func NewRegistry(defaultID string, models ...Model) *Registry {
	r := &Registry{models: make(map[string]Model, len(models)), defaultID: defaultID}
	for _, m := range models {
		r.models[m.ID] = m
	}
	return r
}

// Get devuelve el modelo pedido o el modelo por defecto si el id es desconocido.
func (r *Registry) Get(id string) (Model, bool) {
	if m, ok := r.models[id]; ok {
		return m, true
	}
	m, ok := r.models[r.defaultID]
	return m, ok
}

// Has indica si el id está registrado exactamente.
func (r *Registry) Has(id string) bool {
	_, ok := r.models[id]
	return ok
}

func (r *Registry) List() []Model {
	out := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
