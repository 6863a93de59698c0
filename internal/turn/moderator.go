package turn

const ModeratorSpeaker = "🎤 진행자"

const greetingText = "안녕! 여긴 영화 좋아하는 사람들이 모인 톡방이야 😊\n\n" +
	"기분이나 상황만 말해줘도 되고,\n특정 사람한테만 물어봐도 돼.\n\n" +
	"오늘 어떤 영화가 땡겨?"

const closingText = "어때? 추천 받은 영화가 마음에 들어?\n" +
	"마음에 드는 영화가 있으면 그 영화에 대해 더 자세히 설명해줄 수 있어!\n" +
	"아니면 다른 영화 추천을 요청해도 좋아."

// Greeting is the first message of every conversation.
func Greeting() Message {
	return Message{Speaker: ModeratorSpeaker, Text: greetingText}
}

// Closing is appended as the last message of every turn.
func Closing() Message {
	return Message{Speaker: ModeratorSpeaker, Text: closingText}
}
