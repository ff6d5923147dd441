package chat

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chatsync/cmd/client/cmd/render"
	"chatsync/cmd/client/cmd/types"
	"chatsync/internal/app/client/stream"
)

var (
	conversationID string
	raw            bool
)

var ChatCmd = &cobra.Command{
	Use:   `chat "<сообщение>"`,
	Short: "Отправить сообщение модели",
	Long: `Добавляет сообщение в беседу и принимает ответ модели.

Без --conversation создается новая беседа. Ctrl+C прерывает ответ:
полученный текст сохраняется с пометкой об отмене.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		prompt := strings.Join(args, " ")

		convID := conversationID
		if convID == "" {
			conv, err := rt.App.NewConversation(ctx, "")
			if err != nil {
				return fmt.Errorf("ошибка создания беседы: %w", err)
			}
			convID = conv.ID
			color.New(color.Faint).Fprintf(os.Stderr, "Беседа %s\n", convID)
		}

		pretty := !raw && render.IsTerminal()

		var printed string
		onUpdate := func(preview string) {
			if pretty {
				return
			}
			// превью может быть дописано закрывающими скобками, печатаем только прирост
			if strings.HasPrefix(preview, printed) {
				fmt.Print(preview[len(printed):])
				printed = preview
			}
		}

		if pretty {
			color.New(color.Faint).Fprintln(os.Stderr, "Генерация ответа...")
		}
		msg, err := rt.App.SendMessage(ctx, convID, prompt, onUpdate)
		if errors.Is(err, stream.ErrCancelled) {
			fmt.Println()
			color.Yellow("Ответ прерван")
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case pretty:
			fmt.Print(render.Markdown(msg.Content))
		case printed == "":
			fmt.Println(msg.Content)
		default:
			fmt.Println()
		}

		if msg.Usage != nil && rt.Config.IsLocal() {
			color.New(color.Faint).Fprintf(os.Stderr, "tokens: %d prompt, %d completion\n",
				msg.Usage.PromptTokens, msg.Usage.CompletionTokens)
		}
		return nil
	},
}

func init() {
	ChatCmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "идентификатор беседы")
	ChatCmd.Flags().BoolVar(&raw, "raw", false, "печатать ответ потоком без форматирования")
}
