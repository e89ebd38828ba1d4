package prompt

import (
	"strings"

	"transcript-stack/internal/models"
)

// Prompt is a model request: ordered system instruction lines and the user content
type Prompt struct {
	System []string
	User   string
}

// Instructions joins the system lines into the single instruction block sent to the model
func (p Prompt) Instructions() string {
	return strings.Join(p.System, "\n")
}

var formattingBase = []string{
	"You are an expert in natural language processing and document formatting.",
	"Your task is to transform a spoken word transcript into well-structured text while preserving the natural flow of speech.",
	"Identify complete thoughts, natural pauses and topic transitions in the speaker's words.",
}

var (
	paragraphsOn  = "Group related ideas into coherent paragraphs and start a new paragraph when the topic shifts."
	paragraphsOff = "Keep the text as continuous prose; do not introduce new paragraph breaks."

	headingsOn  = "Add clear topic headings that reflect the content, using markdown (## for headings)."
	headingsOff = "Do NOT add any headings or section titles; the output must contain no lines starting with #."

	grammarOn  = "Fix grammar and punctuation, end sentences at natural pauses, and remove unnecessary periods."
	grammarOff = "Do not correct grammar or wording; keep the speaker's phrasing exactly as spoken, only adding structure."

	highlightOn  = "Highlight key points with bold text and use bullet points (*) for lists or emphasized points."
	highlightOff = "Do not add bold text, bullet points or any other emphasis."
)

var styleInstructions = map[models.DocumentStyle][2]string{
	models.StyleArticle: {
		"Format the result as a readable article with an engaging flow from one section to the next.",
		"Favor full paragraphs over fragments so the piece reads like published prose.",
	},
	models.StyleTranscript: {
		"Format the result as a clean transcript that stays close to the spoken order of the words.",
		"Keep conversational markers and speaker turns recognisable while improving readability.",
	},
	models.StyleMeetingNotes: {
		"Format the result as meeting notes organised around discussion points, decisions and action items.",
		"Keep each point concise and attribute decisions or tasks where the speaker makes that clear.",
	},
	models.StyleAcademic: {
		"Format the result in an academic register with precise wording and a logical argument structure.",
		"Present claims and supporting points in a formal tone suitable for a lecture write-up.",
	},
}

var preservationRules = []string{
	"CRITICAL RULES:",
	"- Preserve ALL original content and the speaker's authentic voice.",
	"- Don't summarize or remove anything.",
	"- Don't add interpretations or new content.",
	"- Focus on structure and readability only.",
}

const formattingUserIntro = "This is a spoken word transcript that needs to be formatted into clear sentences and paragraphs while preserving the natural flow of speech."

// ComposeFormatting builds the formatting prompt. Output depends only on the config.
func ComposeFormatting(text string, cfg models.FormattingConfig) Prompt {
	style := cfg.Style
	if !style.Valid() {
		style = models.StyleArticle
	}

	lines := make([]string, 0, 16)
	lines = append(lines, formattingBase...)
	lines = append(lines, toggle(cfg.Paragraphs, paragraphsOn, paragraphsOff))
	lines = append(lines, toggle(cfg.Headings, headingsOn, headingsOff))
	lines = append(lines, toggle(cfg.FixGrammar, grammarOn, grammarOff))
	lines = append(lines, toggle(cfg.HighlightKeyPoints, highlightOn, highlightOff))

	styleLines := styleInstructions[style]
	lines = append(lines, styleLines[0], styleLines[1])
	lines = append(lines, preservationRules...)
	lines = append(lines, formattingUserIntro)

	return Prompt{System: lines, User: text}
}

var rewriteBase = []string{
	"You are an expert editor who rewrites transcripts into polished written content.",
	"Rewrite the text below in the requested style while keeping its meaning, facts and key ideas intact.",
	"Use markdown for structure where it helps the reader.",
}

var rewriteInstructions = [...][]string{
	models.TagClearSimple: {
		"Use clear, simple language that a general audience can follow.",
		"Prefer short sentences and everyday words over jargon.",
	},
	models.TagProfessional: {
		"Adopt a professional, polished tone suitable for a business audience.",
		"Remove filler words and casual asides.",
	},
	models.TagStorytelling: {
		"Tell the content as a story with a clear beginning, middle and end.",
		"Use vivid, concrete details to keep the reader engaged.",
		"Let the narrative build towards the main insight.",
	},
	models.TagYouTubeScript: {
		"Write the result as a YouTube video script.",
		"Open with a strong hook in the first two sentences.",
		"Mark scene or section changes and write lines meant to be spoken aloud.",
		"End with a short call to action.",
	},
	models.TagEducational: {
		"Explain the ideas in a teaching style, defining terms as they appear.",
		"Build concepts step by step and add brief examples where they help understanding.",
	},
	models.TagBalanced: {
		"Keep a balanced, neutral tone and present differing viewpoints fairly.",
	},
	models.TagShorter: {
		"Make the rewrite noticeably shorter than the original, about half the length, keeping only the essential points.",
	},
	models.TagLonger: {
		"Make the rewrite longer than the original by expanding on each point with explanation and context.",
		"Do not invent facts that are not supported by the original text.",
	},
}

// ComposeRewrite validates rc and builds the rewrite prompt with the banned phrase list in front
func ComposeRewrite(text string, rc models.RewriteConfig) (Prompt, error) {
	if err := Validate(rc); err != nil {
		return Prompt{}, err
	}

	lines := make([]string, 0, 24)
	lines = append(lines, rewriteBase...)
	for _, tag := range rc.Tags() {
		lines = append(lines, rewriteInstructions[tag]...)
	}

	return Prompt{System: ApplyBlacklist(lines), User: text}, nil
}

var ideasInstructions = []string{
	"You are a social media strategist who turns long-form content into post ideas.",
	"Read the transcript below and propose 5 to 10 distinct social media post ideas based on it.",
	"For each idea give a short title, the target platform, and a one or two sentence draft of the post.",
	"Ground every idea in something the speaker actually said.",
	"Format the list in markdown.",
}

// ComposeIdeas builds the post idea generation prompt
func ComposeIdeas(text string) Prompt {
	lines := make([]string, len(ideasInstructions))
	copy(lines, ideasInstructions)
	return Prompt{System: lines, User: text}
}

func toggle(on bool, enabled, disabled string) string {
	if on {
		return enabled
	}
	return disabled
}
