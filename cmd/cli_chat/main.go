package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ki-studio/internal/config"
	"ki-studio/internal/db"
	"ki-studio/internal/domain"
	"ki-studio/internal/llm"
	"ki-studio/internal/repository"
	"ki-studio/internal/service"
)

const cliUserEmail = "cli_test@example.com"

func main() {
	modelID := flag.String("model", llm.ModelChat, "chat model id (chat-model, chat-model-reasoning)")
	flag.Parse()

	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	if !cfg.Debug {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal(err)
	}

	userRepo := repository.NewPgUserRepository(pool)
	chatRepo := repository.NewPgChatRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)

	models := []llm.Model{{ID: llm.ModelChat, Client: llm.NewHTTPClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ChatModel, logger)}}
	if cfg.AzureBaseURL != "" {
		models = append(models,
			llm.Model{
				ID:        llm.ModelChatReasoning,
				Reasoning: true,
				Client:    llm.NewAzureClient(cfg.AzureBaseURL, cfg.AzureAPIKey, cfg.AzureAPIVersion, cfg.ReasoningModel, logger),
			},
			llm.Model{
				ID:     llm.ModelTitle,
				Client: llm.NewAzureClient(cfg.AzureBaseURL, cfg.AzureAPIKey, cfg.AzureAPIVersion, cfg.TitleModel, logger),
			},
		)
	}
	registry := llm.NewRegistry(llm.ModelChat, models...)

	userSvc := service.NewUserService(logger, userRepo)
	chatSvc := service.NewChatService(
		logger,
		chatRepo,
		service.NewMessageService(messageRepo),
		service.NewBasicContextService(messageRepo),
		service.NewProjectService(repository.NewPgProjectRepository(pool)),
		registry,
		nil,
		nil,
		nil,
	)
	defer chatSvc.Wait()

	user, err := userSvc.EnsureUser(ctx, cliUserEmail, "CLI")
	if err != nil {
		log.Fatal(err)
	}

	for {
		fmt.Println("===== ki-studio CLI =====")
		fmt.Println("[1] Nuevo chat")
		fmt.Println("[2] Continuar un chat reciente")
		fmt.Println("[3] Salir")
		fmt.Print("Selección: ")
		choice, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		switch strings.TrimSpace(choice) {
		case "1":
			chatFlow(ctx, reader, chatSvc, user, uuid.NewString(), *modelID)
		case "2":
			chatID, ok := pickChat(ctx, reader, chatSvc, user)
			if ok {
				chatFlow(ctx, reader, chatSvc, user, chatID, *modelID)
			}
		case "3":
			return
		default:
			fmt.Println("Selección inválida.")
		}
	}
}

func pickChat(ctx context.Context, reader *bufio.Reader, chatSvc *service.ChatService, user domain.User) (string, bool) {
	page, err := chatSvc.History(ctx, user.ID, 10, "")
	if err != nil {
		fmt.Printf("error listando chats: %v\n", err)
		return "", false
	}
	if len(page.Chats) == 0 {
		fmt.Println("No hay chats todavía.")
		return "", false
	}
	for i, c := range page.Chats {
		fmt.Printf("[%d] %s (%s)\n", i+1, c.Title, c.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Print("Chat: ")
	raw, _ := reader.ReadString('\n')
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || idx < 1 || idx > len(page.Chats) {
		fmt.Println("Selección inválida.")
		return "", false
	}
	return page.Chats[idx-1].ID, true
}

func chatFlow(ctx context.Context, reader *bufio.Reader, chatSvc *service.ChatService, user domain.User, chatID, modelID string) {
	fmt.Println("---- Modo Chat (escribe 'salir' para terminar chat) ----")
	out := bufio.NewWriter(os.Stdout)
	for {
		fmt.Print("Tu > ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "salir") || strings.EqualFold(text, "exit") {
			fmt.Println("Saliendo del chat...")
			return
		}

		_, err = chatSvc.SendMessage(ctx, service.SendMessageInput{
			ChatID:  chatID,
			UserID:  user.ID,
			ModelID: modelID,
			Message: domain.Message{
				Role:  domain.RoleUser,
				Parts: []domain.MessagePart{{Type: domain.PartText, Text: text}},
			},
		}, func(ev service.ChatEvent) error {
			return printEvent(out, ev)
		})
		if err != nil {
			fmt.Printf("\nerror generando respuesta: %v\n", err)
		}
	}
}

// printEvent escribe los deltas a medida que llegan; el razonamiento se muestra entre corchetes.
func printEvent(out *bufio.Writer, ev service.ChatEvent) error {
	switch ev.Type {
	case "start":
		fmt.Fprint(out, "IA > ")
	case "reasoning-start":
		fmt.Fprint(out, "[")
	case "reasoning-end":
		fmt.Fprint(out, "]\n")
	case "text-delta", "reasoning-delta":
		fmt.Fprint(out, ev.Delta)
	case "tool-input-available":
		fmt.Fprintf(out, "\n(%s %v)\n", ev.ToolName, ev.Input)
	case "tool-output-error":
		fmt.Fprintf(out, "\n(error: %s)\n", ev.ErrorText)
	case "finish":
		fmt.Fprintln(out)
	}
	return out.Flush()
}
