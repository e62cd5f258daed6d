package rag

import "strings"

const (
	// NoContext stands in for the context block when retrieval found nothing.
	NoContext = "Tidak ada konteks yang relevan ditemukan."
	// NoResponse is returned when the model replies with nothing.
	NoResponse = "[No response]"
	// ContextSeparator joins context lines in the final prompt.
	ContextSeparator = "\n---\n"
)

const assistantInstruction = `Anda adalah asisten AI ahli karir yang membantu dan informatif.
Tugas utama Anda adalah merangkai jawaban yang koheren dan bermanfaat berdasarkan informasi yang disediakan dalam "Konteks".
Hubungkan titik-titik antara berbagai potongan informasi untuk menjawab "Pertanyaan" pengguna sebaik mungkin.`

// TranslationPrompt is the system prompt for translating q to English.
func TranslationPrompt(q string) string {
	return "You are an expert translator. Translate the following text to English. " +
		"Return only the translated text, nothing else. text: '" + q + "'"
}

// JoinContext renders context lines as one block.
func JoinContext(lines []string) string {
	if len(lines) == 0 {
		return NoContext
	}
	return strings.Join(lines, ContextSeparator)
}

// FinalPrompt builds the generation prompt from the context block and the
// question in its original language.
func FinalPrompt(contextText, question string) string {
	var b strings.Builder
	b.WriteString(assistantInstruction)
	b.WriteString("\n---\n")
	b.WriteString(contextText)
	b.WriteString("\n---\n\nPertanyaan:\n")
	b.WriteString(question)
	return b.String()
}

// cleanTranslation strips whitespace and wrapping quotes a model tends to
// add around a bare translation.
func cleanTranslation(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first != last || (first != '"' && first != '\'' && first != '`') {
			break
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
