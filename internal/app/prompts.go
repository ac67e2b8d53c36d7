package app

import (
	"fmt"
	"strings"
)

const summarizeSystemPrompt = `You condense web page content into study material for a slide presentation.
Keep every fact, figure and name that matters. Drop navigation text, ads and boilerplate.
Answer in plain text paragraphs.`

const synthesizeSystemPrompt = `You are a subject-matter expert writing source material for a slide presentation.
Write thorough, factual content about the requested topic: an overview, key concepts,
supporting details, examples and a conclusion. Answer in plain text paragraphs.`

const imageDirectivesSystemPrompt = `You plan illustrations for a slide presentation.
Return ONLY a JSON array. Each element is an object with exactly two string fields:
"prompt" (a detailed image-generation prompt, no text in the image) and
"description" (a short caption for the slide). Return at most %d elements.`

const presentationSystemPrompt = `You write slide presentations.
Return ONLY a JSON object with two string fields: "title" and "content".
In "content":
- separate slides with a line containing exactly three dashes, with one blank line above and below
- use "#" and "##" for headings and "*" for bullet points
- place images with ![description](url) using only the image URLs provided, optionally followed by an italic caption line
- add speaker notes on a line starting with "Note:"`

const qaSystemPrompt = `You answer questions about a presentation using only the provided context.
If the context does not contain the answer, reply exactly:
"I cannot answer this question based on the available information."`

func summarizeUserPrompt(content string) string {
	return "Summarize the following web content:\n\n" + content
}

func synthesizeUserPrompt(prompt string) string {
	return "Topic and instructions:\n\n" + prompt
}

func imageDirectivesPrompt(maxImages int) string {
	return fmt.Sprintf(imageDirectivesSystemPrompt, maxImages)
}

func imageDirectivesUserPrompt(content string) string {
	return "Plan illustrations for a presentation based on this content:\n\n" + content
}

type imageRef struct {
	URL         string
	Description string
}

func presentationUserPrompt(prompt, content string, images []imageRef) string {
	var b strings.Builder
	if p := strings.TrimSpace(prompt); p != "" {
		b.WriteString("Request:\n")
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	b.WriteString("Content:\n")
	b.WriteString(content)
	if len(images) > 0 {
		b.WriteString("\n\nAvailable images:\n")
		for _, img := range images {
			fmt.Fprintf(&b, "![%s](%s)\n", img.Description, img.URL)
		}
	}
	return b.String()
}

func qaUserPrompt(context, question string) string {
	return "Context:\n" + context + "\n\nQuestion: " + question
}
