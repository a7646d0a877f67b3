package judge

import (
	"bytes"
	"fmt"
	"text/template"
)

// Outputs are truncated before they reach the judge; past this point
// extra text stops changing scores and only burns context.
const maxJudgedChars = 3000

const systemPrompt = `You are an expert evaluator comparing the outputs of AI models.
Your task is to evaluate and score each output on a scale of 1-10 based on specific criteria.
Be objective and provide detailed reasoning for your scores.`

func truncateText(s string) string {
	if len(s) <= maxJudgedChars {
		return s
	}
	return s[:maxJudgedChars]
}

var funcMap = template.FuncMap{
	"truncate": truncateText,
}

var transcriptionRubric = template.Must(template.New("transcription").Funcs(funcMap).Parse(`Compare these two transcriptions of the same audio:

**Transcription A ({{.ModelA}}):**
{{.OutputA | truncate}}

**Transcription B ({{.ModelB}}):**
{{.OutputB | truncate}}

Evaluate each transcription on these criteria (1-10 scale):
1. **Accuracy**: How accurate is the transcription likely to be?
2. **Coherence**: Is it well-formed, readable and properly punctuated?
3. **Completeness**: Does it capture all the spoken content?
4. **Style**: Is the formatting appropriate for a transcript?

Provide your response in this exact format:
SCORE_A: [overall 1-10]
SCORE_B: [overall 1-10]
ACCURACY: [score for A] | [score for B]
COHERENCE: [score for A] | [score for B]
COMPLETENESS: [score for A] | [score for B]
STYLE: [score for A] | [score for B]
WINNER: [A or B or TIE]
REASONING: [Your detailed analysis]`))

var generationRubric = template.Must(template.New("generation").Funcs(funcMap).Parse(`Compare these two LLM outputs generated from the same input:

**Task:** {{.Task}}

**Output A ({{.ModelA}}):**
{{.OutputA | truncate}}

**Output B ({{.ModelB}}):**
{{.OutputB | truncate}}

Evaluate each output on these criteria (1-10 scale):
1. **Accuracy**: Is the content faithful to the task and input?
2. **Coherence**: Is it clear and well-organized?
3. **Completeness**: Does it cover all necessary points?
4. **Style**: Is the writing style appropriate?

Provide your response in this exact format:
SCORE_A: [overall 1-10]
SCORE_B: [overall 1-10]
ACCURACY: [score for A] | [score for B]
COHERENCE: [score for A] | [score for B]
COMPLETENESS: [score for A] | [score for B]
STYLE: [score for A] | [score for B]
WINNER: [A or B or TIE]
REASONING: [Your detailed analysis]`))

func buildRubricPrompt(in Input) (string, error) {
	tpl := generationRubric
	if in.Kind == KindTranscription {
		tpl = transcriptionRubric
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("failed to render rubric: %w", err)
	}
	return buf.String(), nil
}
