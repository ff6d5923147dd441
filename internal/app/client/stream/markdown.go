package stream

import (
	"strings"
)

// scanner инкрементально отслеживает незакрытые конструкции markdown.
// Текст не хранит: получает весь накопленный буфер и смещение начала новых байт.
type scanner struct {
	pos int

	// незавершенная серия обратных кавычек
	ticks int

	inFence     bool
	fenceTicks  int
	inInline    bool
	inlineTicks int

	// смещения незакрытых '['
	brackets []int
	// смещение сразу после ']' и '[' парной к ней, для распознавания "]("
	afterClose int
	closeOpen  int

	link *openLink

	quotes    int
	wordStart int
}

// openLink ссылка, у которой не закрыта скобка адреса
type openLink struct {
	open   int // смещение '['
	target int // смещение первого байта адреса
	depth  int
}

func newScanner() *scanner {
	return &scanner{afterClose: -1}
}

// feed обрабатывает raw[s.pos:]. Специальные символы однобайтовые,
// поэтому побайтовый проход корректен и для UTF-8.
func (s *scanner) feed(raw string) {
	for i := s.pos; i < len(raw); i++ {
		s.step(raw[i], i)
	}
	s.pos = len(raw)
}

func (s *scanner) step(c byte, i int) {
	if c == '`' {
		s.ticks++
		return
	}
	if s.ticks > 0 {
		s.endTicks()
	}

	if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
		s.wordStart = i + 1
	}

	if s.inFence || s.inInline {
		return
	}

	if s.link != nil {
		switch c {
		case '(':
			s.link.depth++
		case ')':
			if s.link.depth == 0 {
				s.link = nil
			} else {
				s.link.depth--
			}
		case '\n':
			// адрес ссылки не переносится на новую строку
			s.link = nil
		}
		return
	}

	switch c {
	case '[':
		s.brackets = append(s.brackets, i)
	case ']':
		if n := len(s.brackets); n > 0 {
			s.closeOpen = s.brackets[n-1]
			s.brackets = s.brackets[:n-1]
			s.afterClose = i + 1
			return
		}
	case '(':
		if i == s.afterClose {
			s.link = &openLink{open: s.closeOpen, target: i + 1}
		}
	case '"':
		s.quotes++
	}
	s.afterClose = -1
}

func (s *scanner) endTicks() {
	n := s.ticks
	s.ticks = 0
	s.afterClose = -1

	switch {
	case s.inFence:
		if n >= s.fenceTicks {
			s.inFence = false
		}
	case s.inInline:
		if n == s.inlineTicks {
			s.inInline = false
		}
	case n >= 3:
		s.inFence = true
		s.fenceTicks = n
	default:
		s.inInline = true
		s.inlineTicks = n
	}
}

// settled возвращает копию состояния с учетом хвостовой серии кавычек
func (s *scanner) settled() scanner {
	cp := *s
	cp.brackets = append([]int(nil), s.brackets...)
	if s.link != nil {
		l := *s.link
		cp.link = &l
	}
	if cp.ticks > 0 {
		cp.endTicks()
	}
	return cp
}

// trailingURL сообщает, заканчивается ли текст голым адресом
func (s *scanner) trailingURL(raw string) bool {
	if s.inFence || s.inInline || s.link != nil || s.wordStart >= len(raw) {
		return false
	}
	word := raw[s.wordStart:]
	return strings.HasPrefix(word, "http://") || strings.HasPrefix(word, "https://")
}

// urlTerminator отделяет оборванный адрес от дописанных за ним закрывающих,
// иначе "]" или '"' станут частью автоссылки. Без закрывающих не пишется.
// Обертка в <...> не подходит: превью должно начинаться с исходного текста.
const urlTerminator = " "

// linkPlaceholder временный адрес для ссылки, у которой адрес еще не пришел
const linkPlaceholder = "#"

// Sanitize возвращает текст для промежуточного показа: к накопленному
// тексту дописываются закрывающие элементы для всех незакрытых конструкций.
// Сам накопленный текст не меняется.
func (s *scanner) Sanitize(raw string) string {
	st := s.settled()

	var b strings.Builder
	b.Grow(len(raw) + 16)
	b.WriteString(raw)

	url := st.trailingURL(raw)
	if st.inInline {
		b.WriteString(strings.Repeat("`", st.inlineTicks))
	}
	if st.inFence {
		if !strings.HasSuffix(raw, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("`", st.fenceTicks))
	}
	if st.link != nil {
		if st.link.target >= len(raw) {
			b.WriteString(linkPlaceholder)
		}
		b.WriteString(strings.Repeat(")", st.link.depth+1))
	}
	closers := strings.Repeat("]", len(st.brackets))
	if st.quotes%2 == 1 {
		closers += `"`
	}
	if url && closers != "" {
		b.WriteString(urlTerminator)
	}
	b.WriteString(closers)
	return b.String()
}

// Cleanup приводит окончательный текст к корректному markdown:
// закрывает блоки кода и кавычки, дописывает скобку оборванной ссылки,
// ссылку без адреса заменяет ее текстом, одиночные '[' экранирует.
func (s *scanner) Cleanup(raw string) string {
	st := s.settled()

	unwrap := st.link != nil && st.link.target >= len(raw)
	end := len(raw)
	if unwrap {
		// отрезаем "]("
		end = st.link.target - 2
	}

	escape := make(map[int]struct{}, len(st.brackets))
	for _, off := range st.brackets {
		escape[off] = struct{}{}
	}

	var b strings.Builder
	b.Grow(len(raw) + 8)
	for i := 0; i < end; i++ {
		if unwrap && i == st.link.open {
			continue
		}
		if _, ok := escape[i]; ok {
			b.WriteByte('\\')
		}
		b.WriteByte(raw[i])
	}

	if st.inInline {
		b.WriteString(strings.Repeat("`", st.inlineTicks))
	}
	if st.inFence {
		if !strings.HasSuffix(raw, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("`", st.fenceTicks))
	}
	if st.link != nil && !unwrap {
		b.WriteString(strings.Repeat(")", st.link.depth+1))
	}
	if st.quotes%2 == 1 {
		b.WriteByte('"')
	}
	return b.String()
}

// Sanitize разовый вариант для целого текста
func Sanitize(raw string) string {
	s := newScanner()
	s.feed(raw)
	return s.Sanitize(raw)
}

// Cleanup разовый вариант для целого текста
func Cleanup(raw string) string {
	s := newScanner()
	s.feed(raw)
	return s.Cleanup(raw)
}
