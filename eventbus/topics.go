package eventbus

// 기능별 기본 토픽.
var (
	TopicChatEvents = NewTopic("ai-chat.chat.events")
)

var AllTopics = []Topic{
	TopicChatEvents,
}
