package prompts

import (
	"fmt"
	"strings"
	"unicode"

	"tech-ai-bot/internal/core/domain"
)

// TopicContent is the canned material merged into a topic template.
type TopicContent struct {
	Benefits [3]string
	Insight  string
	Question string
}

var topicTemplateLabels = [domain.NumTopics]string{
	domain.TopicGeneral:           "topic.general",
	domain.TopicAIModel:           "topic.ai_model",
	domain.TopicHardware:          "topic.hardware",
	domain.TopicMedical:           "topic.medical",
	domain.TopicAutonomousVehicle: "topic.autonomous_vehicle",
	domain.TopicRoboticKitchen:    "topic.robotic_kitchen",
	domain.TopicSmartHome:         "topic.smart_home",
	domain.TopicBrainComputer:     "topic.brain_computer",
	domain.TopicEnvironment:       "topic.environment",
	domain.TopicEducation:         "topic.education",
	domain.TopicAutomation:        "topic.automation",
}

var topicContent = [domain.NumTopics]TopicContent{
	domain.TopicGeneral: {
		Benefits: [3]string{"Saves time on everyday tasks", "Opens new options for builders", "Lowers the cost of trying new ideas"},
		Insight:  "The real impact shows up when people adopt it, not on launch day.",
		Question: "What do you think of this development?",
	},
	domain.TopicAIModel: {
		Benefits: [3]string{"Better understanding of long context", "Support for more languages", "Direct integration with existing apps"},
		Insight:  "This is more than an incremental update; it could shift how AI products are built next year.",
		Question: "Would you use this model in your next project?",
	},
	domain.TopicHardware: {
		Benefits: [3]string{"Faster model training", "Lower power draw per workload", "Room for heavier on-device AI"},
		Insight:  "The value will only be clear once this hardware is deployed at scale.",
		Question: "Is today's infrastructure ready for chips like this?",
	},
	domain.TopicMedical: {
		Benefits: [3]string{"Faster diagnosis and earlier treatment", "Fewer human errors", "Less time and money spent by patients"},
		Insight:  "The hard part is not accuracy but fair access to the technology.",
		Question: "Should tools like this be free for everyone?",
	},
	domain.TopicAutonomousVehicle: {
		Benefits: [3]string{"Fewer road accidents", "Safer trips for tired drivers", "Commute time freed for work or rest"},
		Insight:  "Moving to autonomous cars is a social shift as much as a technical one.",
		Question: "What is the first thing you would do inside a self-driving car?",
	},
	domain.TopicRoboticKitchen: {
		Benefits: [3]string{"Meals tailored to dietary needs", "Less food waste", "Consistent quality at any hour"},
		Insight:  "Robots in the kitchen extend what cooks can do rather than replace them.",
		Question: "Would you eat at a fully automated restaurant?",
	},
	domain.TopicSmartHome: {
		Benefits: [3]string{"Climate control that adapts to you", "Lighting that follows your sleep cycle", "Lower electricity bills"},
		Insight:  "Smart homes are becoming a platform, not just a set of gadgets.",
		Question: "What is the first thing in your home you would make smart?",
	},
	domain.TopicBrainComputer: {
		Benefits: [3]string{"Early warning of fatigue and stress", "Personalized wellbeing advice", "Better focus at work and at home"},
		Insight:  "The line between people and machines keeps getting thinner.",
		Question: "Would you trust an app that can read your state of mind?",
	},
	domain.TopicEnvironment: {
		Benefits: [3]string{"Better planning for farming and irrigation", "Earlier wildfire detection", "Less damage from natural disasters"},
		Insight:  "Technology can be the fix or the problem, depending on how responsibly it is used.",
		Question: "Can technology really solve environmental problems?",
	},
	domain.TopicEducation: {
		Benefits: [3]string{"Learn what you need, not what is imposed", "Faster progress in your strong subjects", "Less study stress"},
		Insight:  "Smart learning could redefine education, but it needs careful regulation.",
		Question: "Would you like to be taught by an AI tutor?",
	},
	domain.TopicAutomation: {
		Benefits: [3]string{"Much less time spent on repetitive writing", "More focus on creative work", "A clear boost in productivity"},
		Insight:  "Automation is an opportunity to raise output and creativity, not a threat.",
		Question: "Do you use AI tools in your daily work?",
	},
}

// topicKeywords is checked in declaration order; the first match wins.
var topicKeywords = []struct {
	topic    domain.Topic
	keywords []string
}{
	{domain.TopicAIModel, []string{"gpt", "llm", "model", "ai", "chatbot", "gemini", "claude"}},
	{domain.TopicHardware, []string{"chip", "gpu", "hardware", "processor", "semiconductor"}},
	{domain.TopicMedical, []string{"cancer", "diagnosis", "medical", "hospital", "disease"}},
	{domain.TopicAutonomousVehicle, []string{"car", "cars", "vehicle", "drive", "driverless", "self-driving", "robotaxi"}},
	{domain.TopicRoboticKitchen, []string{"kitchen", "food", "robotic", "restaurant"}},
	{domain.TopicSmartHome, []string{"home", "house", "smart"}},
	{domain.TopicBrainComputer, []string{"brain", "mind", "neural"}},
	{domain.TopicEnvironment, []string{"environment", "climate", "satellite"}},
	{domain.TopicEducation, []string{"education", "learn", "school", "student"}},
	{domain.TopicAutomation, []string{"automation", "write", "content", "workflow"}},
}

// DetectTopic classifies a headline by keyword. Keywords of three letters or
// fewer must match a whole word; longer ones also match as a word prefix,
// and keywords with punctuation match anywhere.
func DetectTopic(headline string) domain.Topic {
	lower := strings.ToLower(headline)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, group := range topicKeywords {
		for _, kw := range group.keywords {
			if matchKeyword(lower, words, kw) {
				return group.topic
			}
		}
	}
	return domain.TopicGeneral
}

func matchKeyword(lower string, words []string, kw string) bool {
	if strings.IndexFunc(kw, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) >= 0 {
		return strings.Contains(lower, kw)
	}
	for _, w := range words {
		if w == kw || (len(kw) > 3 && strings.HasPrefix(w, kw)) {
			return true
		}
	}
	return false
}

func topicLabel(t domain.Topic) string {
	return topicTemplateLabels[t]
}

// checkTables verifies every topic has a template label and complete
// canned content.
func checkTables() error {
	for _, t := range domain.Topics() {
		if topicTemplateLabels[t] == "" {
			return fmt.Errorf("prompts: topic %s has no template label", t)
		}
		c := topicContent[t]
		for i, b := range c.Benefits {
			if b == "" {
				return fmt.Errorf("prompts: topic %s missing benefit %d", t, i+1)
			}
		}
		if c.Insight == "" || c.Question == "" {
			return fmt.Errorf("prompts: topic %s missing insight or question", t)
		}
	}
	return nil
}
