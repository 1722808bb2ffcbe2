// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storm

import (
	"bytes"
	"text/template"
)

// personaPromptTmpl asks for a group of editors, one per line, each bringing
// a different perspective on the topic.
var personaPromptTmpl = template.Must(template.New("persona").Parse(`You need to select a group of Wikipedia editors who will work together to create a comprehensive article on the topic. Each of them represents a different perspective, role, or affiliation related to this topic. For each editor, add a description of what they will focus on.

Give your answer in the following format:
1. short summary of editor 1: description
2. short summary of editor 2: description
...

Give at most {{.Max}} editors.

Topic of interest: {{.Topic}}
`))

// askQuestionTmpl drives the writer side of a simulated conversation.
var askQuestionTmpl = template.Must(template.New("ask").Parse(`You are an experienced Wikipedia writer and want to edit a specific page. Besides your identity as a Wikipedia writer, you have a specific focus when researching the topic.
Now, you are chatting with an expert to get information. Ask good questions to get more useful information.
When you have no more question to ask, say "Thank you so much for your help!" to end the conversation.
Please only ask one question at a time and don't ask what you have asked before. Your questions should be related to the topic you want to write.

Topic you want to write: {{.Topic}}

Your persona besides being a Wikipedia writer: {{.Persona}}

Conversation history:
{{.History}}

Question:`))

// queryPromptTmpl turns a question into search engine queries.
var queryPromptTmpl = template.Must(template.New("queries").Parse(`You want to answer the question using Google search. What do you type in the search box?
Write the queries you will use in the following format:
- query 1
- query 2
...
Use at most {{.Max}} queries.

Topic you are discussing about: {{.Topic}}

Question you want to answer: {{.Question}}

Queries:`))

// answerPromptTmpl grounds the expert's answer on numbered snippets.
var answerPromptTmpl = template.Must(template.New("answer").Parse(`You are an expert who can use information effectively. You are chatting with a Wikipedia writer who wants to write a Wikipedia page on a topic you know. You have gathered the related information and will now use the information to form a response.
Make your response as informative as possible, ensuring that every sentence is supported by the gathered information. If the gathered information is not directly related to the topic or question, provide the most relevant answer based on the available information.

Topic you are discussing about: {{.Topic}}

Question: {{.Question}}

Gathered information:
{{.Info}}

Now give your response. (Try to use as many different sources as possible and do not hallucinate.)`))

// directOutlineTmpl drafts an outline from the topic alone.
var directOutlineTmpl = template.Must(template.New("direct-outline").Parse(`Write an outline for a Wikipedia page.
Here is the format of your writing:
1. Use "#" Title" to indicate section title, "##" Title" to indicate subsection title, "###" Title" to indicate subsubsection title, and so on.
2. Do not include other information.
3. Do not include topic name itself in the outline.

The topic you want to write: {{.Topic}}

Write the Wikipedia page outline:`))

// refineOutlineTmpl improves the draft outline with what the conversations found.
var refineOutlineTmpl = template.Must(template.New("refine-outline").Parse(`Improve an outline for a Wikipedia page. You already have a draft outline that covers the general information. Now you want to improve it based on the information learned from an information-seeking conversation to make it more informative.
Here is the format of your writing:
1. Use "#" Title" to indicate section title, "##" Title" to indicate subsection title, "###" Title" to indicate subsubsection title, and so on.
2. Do not include other information.
3. Do not include topic name itself in the outline.

The topic you want to write: {{.Topic}}

Conversation history:
{{.Conversation}}

Current outline:
{{.Outline}}

Write the Wikipedia page outline:`))

// sectionTmpl writes one top-level section with inline citations.
var sectionTmpl = template.Must(template.New("section").Parse(`Write a Wikipedia section based on the collected information.

Here is the format of your writing:
1. Use "#" Title" to indicate section title, "##" Title" to indicate subsection title, "###" Title" to indicate subsubsection title, and so on.
2. Use [1], [2], ..., [n] in line (for example, "The capital of the United States is Washington, D.C.[1][3]."). You DO NOT need to include a References or Sources section to list the sources at the end.

The collected information:
{{.Info}}

The topic of the page: {{.Topic}}

The section you need to write:
{{.Outline}}

Write the section with proper inline citations (Start your writing with # section title. Don't include the page title or try to write other sections):`))

// leadTmpl writes the lead section that summarizes the draft.
var leadTmpl = template.Must(template.New("lead").Parse(`You are a faithful text writer who is good at writing lead sections for Wikipedia pages. Write a lead section for the Wikipedia page with the following guidelines:
1. The lead should stand on its own as a concise overview of the article's topic. It should identify the topic, establish context, explain why the topic is notable, and summarize the most important points, including any prominent controversies.
2. The lead section should be concise and contain no more than four well-composed paragraphs.
3. The lead section should be carefully sourced as appropriate. Add inline citations (e.g., "Washington, D.C., is the capital of the United States.[1][3].") where necessary.

The topic of the page: {{.Topic}}

The draft page:
{{.Draft}}

Write the lead section (do not include a section title):`))

// render executes tmpl with data.
func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
