package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GenerateSystemInstruction drives creation of a new system prompt. The five
// sections are mandatory and the constraints section always carries the
// licensed-professional disclaimer.
const GenerateSystemInstruction = `You are a world-class expert in designing AI assistant prompts. Your task is to take a user's brief idea for an AI assistant and expand it into a comprehensive, well-structured, and effective system prompt. The prompt should be ready to be used directly with a large language model.

When generating the prompt, you must follow this structure and include these sections:

**1. Core Identity:**
   - **Persona:** Define the AI's personality and communication style. Be specific (e.g., "A calm, empathetic, and knowledgeable wellness coach," not just "helpful").
   - **Primary Role:** State the AI's main purpose in a single, clear sentence.

**2. Key Responsibilities & Capabilities:**
   - Use a bulleted list to detail the specific tasks the AI can perform.
   - These should be actionable and directly related to the user's original request.
   - For example: "Provide evidence-based information on mindfulness techniques," "Offer guided meditation scripts," "Suggest healthy coping mechanisms for stress."

**3. Rules & Constraints:**
   - This is a critical section for safety and focus.
   - Use a bulleted list to define clear boundaries.
   - **Crucially, you must always include a disclaimer that the AI is not a substitute for a licensed professional (e.g., therapist, doctor, lawyer).**
   - Other rules could include: "Do not create fictional case studies," "Maintain a positive and supportive tone," "Do not diagnose conditions."

**4. Interaction Style:**
   - Describe how the AI should interact with the user.
   - For example: "Always start by acknowledging the user's feelings," "Use open-ended questions to encourage reflection," "Break down complex topics into simple, understandable steps."

**5. Example Opening:**
   - Provide a sample opening message that the AI could use to introduce itself to a user for the first time. This helps set the tone immediately.

Based on this structure, generate a system prompt for the user request.`

// RefineSystemInstruction drives rewriting of an existing prompt.
const RefineSystemInstruction = `You are a prompt editing assistant. Your role is to modify a prompt based on user instructions. When the user provides a command (e.g., "make it more formal" or "add a rule to avoid financial advice"), you must rewrite and output the ENTIRE, new, updated prompt. Do not just describe the changes or provide a snippet. Output the complete, ready-to-use prompt.`

// ToneOptions are the tone labels offered to users.
var ToneOptions = []string{"Professional", "Friendly", "Witty", "Empathetic", "Formal", "Casual"}

// Recommendation is a ready-made brief users can start from.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Purpose     string `json:"purpose"`
	Tone        string `json:"tone"`
	Audience    string `json:"audience"`
}

// RecommendedPrompts lists the built-in starting briefs.
var RecommendedPrompts = []Recommendation{
	{
		Title:       "Productivity Assistant",
		Description: "Helps users manage tasks, schedule, and stay organized.",
		Purpose:     "An expert productivity assistant to help users manage tasks, set reminders, and organize their daily schedule.",
		Tone:        "Professional",
		Audience:    "Busy professionals",
	},
	{
		Title:       "Marketing Copywriter",
		Description: "Generates compelling copy for emails, ads, and social media.",
		Purpose:     "An expert copywriter for marketing emails, social media posts, and ad campaigns.",
		Tone:        "Witty",
		Audience:    "Small business owners",
	},
	{
		Title:       "Creative Storyteller",
		Description: "A creative partner for brainstorming and writing stories.",
		Purpose:     "A creative partner to help authors brainstorm ideas, develop characters, and write engaging story plots.",
		Tone:        "Friendly",
		Audience:    "Fiction writers",
	},
	{
		Title:       "Technical Explainer",
		Description: "Breaks down complex technical topics into simple terms.",
		Purpose:     "An AI that can explain complex technical concepts like blockchain or APIs in simple, easy-to-understand terms.",
		Tone:        "Formal",
		Audience:    "Students and beginners",
	},
}

// FindRecommendation looks up a recommended brief by case-insensitive title.
func FindRecommendation(title string) (Recommendation, bool) {
	for _, r := range RecommendedPrompts {
		if strings.EqualFold(r.Title, strings.TrimSpace(title)) {
			return r, true
		}
	}
	return Recommendation{}, false
}

// NormalizeTone trims and title-cases a tone label. Known options keep their
// canonical spelling.
func NormalizeTone(tone string) string {
	tone = strings.TrimSpace(tone)
	if tone == "" {
		return ""
	}
	for _, opt := range ToneOptions {
		if strings.EqualFold(opt, tone) {
			return opt
		}
	}
	return cases.Title(language.English).String(tone)
}

// BuildCreatePayload builds the single user message for a create request.
func BuildCreatePayload(purpose, tone, audience string) string {
	var sb strings.Builder
	sb.WriteString(`User Request: "`)
	sb.WriteString(purpose)
	sb.WriteString(`"`)
	if tone = NormalizeTone(tone); tone != "" {
		sb.WriteString("\n- Desired Tone: ")
		sb.WriteString(tone)
	}
	if audience = strings.TrimSpace(audience); audience != "" {
		sb.WriteString("\n- Target Audience: ")
		sb.WriteString(audience)
	}
	return sb.String()
}

// BuildRefineSystem embeds the prior prompt into the refine instruction.
func BuildRefineSystem(prior string) string {
	return fmt.Sprintf("%s\n\nThe user wants you to edit the following prompt:\n\n---\n%s\n---", RefineSystemInstruction, prior)
}
