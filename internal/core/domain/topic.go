package domain

import (
	"fmt"
	"strings"
)

// Topic is the closed set of news categories the template engine knows.
type Topic int

const (
	TopicGeneral Topic = iota
	TopicAIModel
	TopicHardware
	TopicMedical
	TopicAutonomousVehicle
	TopicRoboticKitchen
	TopicSmartHome
	TopicBrainComputer
	TopicEnvironment
	TopicEducation
	TopicAutomation

	topicCount
)

// NumTopics is the number of defined topics.
const NumTopics = int(topicCount)

var topicNames = [topicCount]string{
	TopicGeneral:           "general",
	TopicAIModel:           "ai_model",
	TopicHardware:          "hardware",
	TopicMedical:           "medical",
	TopicAutonomousVehicle: "autonomous_vehicle",
	TopicRoboticKitchen:    "robotic_kitchen",
	TopicSmartHome:         "smart_home",
	TopicBrainComputer:     "brain_computer",
	TopicEnvironment:       "environment",
	TopicEducation:         "education",
	TopicAutomation:        "automation",
}

// Topics lists every topic in declaration order.
func Topics() []Topic {
	out := make([]Topic, 0, topicCount)
	for t := Topic(0); t < topicCount; t++ {
		out = append(out, t)
	}
	return out
}

func (t Topic) String() string {
	if t < 0 || t >= topicCount {
		return fmt.Sprintf("topic(%d)", int(t))
	}
	return topicNames[t]
}

// Valid reports whether t is one of the defined topics.
func (t Topic) Valid() bool { return t >= 0 && t < topicCount }

// ParseTopic maps a topic name back to its value.
func ParseTopic(s string) (Topic, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range topicNames {
		if name == s {
			return Topic(t), nil
		}
	}
	return TopicGeneral, fmt.Errorf("unknown topic %q", s)
}

// Mode selects how content is generated.
type Mode string

const (
	ModePost   Mode = "post"
	ModeThread Mode = "thread"
	ModeTool   Mode = "tool"
	ModeReply  Mode = "reply"
)
