// Package render выводит markdown ответов модели в терминал
package render

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const defaultWidth = 100

// IsTerminal сообщает, подключен ли stdout к терминалу
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Markdown отрисовывает markdown под ширину терминала.
// При ошибке рендерера возвращается исходный текст.
func Markdown(md string) string {
	width := defaultWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w - 4
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
