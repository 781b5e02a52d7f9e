package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/himeno-lab/kotori/pkg/cli/config"
	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdChat() *cli.Command {
	var threadID string
	var geminiCfg config.Gemini
	var repoCfg config.Repository
	var scheduleCfg config.Schedule
	var speechCfg config.Speech
	var visionCfg config.Vision

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "thread-id",
			Usage:       "Conversation thread ID",
			Value:       "local-chat",
			Sources:     cli.EnvVars("KOTORI_THREAD_ID"),
			Destination: &threadID,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, scheduleCfg.Flags()...)
	flags = append(flags, speechCfg.Flags()...)
	flags = append(flags, visionCfg.Flags()...)

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Chat with Kotori on the terminal",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := buildRuntime(ctx, &geminiCfg, &repoCfg, &scheduleCfg, &speechCfg, &visionCfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			fmt.Println("Chatting with Kotori. Type 'exit' or Ctrl-D to quit.")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					break
				}

				result, err := rt.graph.Run(ctx, types.ThreadID(threadID), model.NewHumanMessage(line))
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}

				fmt.Printf("Kotori: %s\n", result.Reply)
				switch result.Workflow {
				case types.WorkflowImage:
					fmt.Printf("(generated an image, %d bytes)\n", len(result.Image))
				case types.WorkflowAudio:
					fmt.Printf("(synthesized audio, %d bytes)\n", len(result.Audio))
				}
			}
			return scanner.Err()
		},
	}
}
