// Command chat runs the intake assistant as an interactive terminal session.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	appconfig "github.com/emmaduprey09/Health-Appointment-App/internal/config"
	"github.com/emmaduprey09/Health-Appointment-App/internal/intake"
	"github.com/emmaduprey09/Health-Appointment-App/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New("error")

	opts := []intake.Option{
		intake.WithClassifier(intake.NewLexiconClassifier()),
		intake.WithLogger(logger),
		intake.WithClinicIdentity(cfg.ClinicName, cfg.IntakeEmail),
		intake.WithCallBudget(cfg.CallBudget),
		intake.WithHistoryBudget(cfg.HistoryBudget),
	}
	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(cfg.OpenAIAPIKey)
		opts = append(opts, intake.WithDrafter(
			intake.NewOpenAIDrafter(client, cfg.OpenAIModel, cfg.ClinicName, cfg.IntakeEmail, cfg.ModelTimeout, logger),
		))
	}

	orchestrator := intake.New(intake.NewMemoryStore(cfg.SessionTTL), opts...)
	sessionID := uuid.NewString()

	fmt.Printf("%s intake assistant. I can help you book, reschedule, or cancel an appointment.\n", cfg.ClinicName)
	fmt.Println("Type 'quit' to leave.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "quit", "exit", "q", "bye":
			fmt.Println("Goodbye.")
			return
		case "":
			continue
		}

		resp, err := orchestrator.ProcessTurn(context.Background(), sessionID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("assistant> %s\n\n", resp.Text)
		if resp.Done {
			fmt.Println("Session complete.")
			return
		}
	}
}
