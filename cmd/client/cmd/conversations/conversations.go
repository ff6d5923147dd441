package conversations

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chatsync/cmd/client/cmd/render"
	"chatsync/cmd/client/cmd/types"
	"chatsync/internal/domain/chat"
)

// ConversationsCmd - родительская команда для работы с беседами
var ConversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Локальные беседы",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Список бесед",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}

		convs, err := rt.App.Conversations(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка чтения бесед: %w", err)
		}

		if rt.JSON {
			records := make([]chat.ConversationRecord, 0, len(convs))
			for _, c := range convs {
				records = append(records, chat.NewConversationRecord(c))
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		if len(convs) == 0 {
			fmt.Println("Бесед пока нет. Начните: chatsync chat \"привет\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tНАЗВАНИЕ\tСООБЩЕНИЙ\tИЗМЕНЕНА")
		for _, c := range convs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				c.ID, c.Title, len(c.Messages), c.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Показать беседу",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}

		conv, err := rt.App.Conversation(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ошибка чтения беседы: %w", err)
		}

		color.New(color.Bold).Println(conv.Title)
		for _, m := range conv.Messages {
			switch m.Role {
			case chat.RoleUser:
				color.Cyan("> %s", m.Content)
			case chat.RoleAssistant:
				if render.IsTerminal() {
					fmt.Print(render.Markdown(m.Content))
				} else {
					fmt.Println(m.Content)
				}
			default:
				color.New(color.Faint).Println(m.Content)
			}
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Удалить беседу локально и на сервере",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}

		if err := rt.App.DeleteConversation(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("ошибка удаления беседы: %w", err)
		}
		color.Green("✅ Беседа удалена")
		return nil
	},
}

func init() {
	ConversationsCmd.AddCommand(listCmd)
	ConversationsCmd.AddCommand(showCmd)
	ConversationsCmd.AddCommand(deleteCmd)
}
