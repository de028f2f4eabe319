package alephzero

import "strings"

// TopicPlaceholder is substituted with the topic name in protocol templates.
const TopicPlaceholder = "{topic}"

// ProtocolTemplates maps protocol names to the path template of their
// backing file, relative to the runtime root.
func ProtocolTemplates() map[string]string {
	return map[string]string{
		"file":   "{topic}",
		"cfg":    "{topic}.cfg.a0",
		"log":    "{topic}.log.a0",
		"prpc":   "{topic}.prpc.a0",
		"pubsub": "{topic}.pubsub.a0",
		"rpc":    "{topic}.rpc.a0",
	}
}

// TopicPath expands a protocol template with a topic name.
func TopicPath(tmpl, topic string) string {
	return strings.ReplaceAll(tmpl, TopicPlaceholder, topic)
}

// PubsubPath returns the backing path of a pub/sub topic.
func PubsubPath(topic string) string { return TopicPath(ProtocolTemplates()["pubsub"], topic) }

// LogPath returns the backing path of a log topic.
func LogPath(topic string) string { return TopicPath(ProtocolTemplates()["log"], topic) }

// RPCPath returns the backing path of an RPC topic.
func RPCPath(topic string) string { return TopicPath(ProtocolTemplates()["rpc"], topic) }

// PrpcPath returns the backing path of a progressive-RPC topic.
func PrpcPath(topic string) string { return TopicPath(ProtocolTemplates()["prpc"], topic) }
