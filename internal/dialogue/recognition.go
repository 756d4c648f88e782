package dialogue

import "voicepay/internal/domain"

const msgDidNotCatch = "I'm sorry, I didn't catch that. Please try again."

var recognitionReplies = map[domain.RecognitionFailure]string{
	domain.RecognitionNoMatch:        msgDidNotCatch,
	domain.RecognitionSpeechTimeout:  "I didn't hear anything. Please try again.",
	domain.RecognitionNetwork:        "I'm having trouble reaching the speech service. Please check your connection and try again.",
	domain.RecognitionNetworkTimeout: "I'm having trouble reaching the speech service. Please check your connection and try again.",
	domain.RecognitionServer:         "The speech service had a problem. Please try again in a moment.",
	domain.RecognitionBusy:           "The speech service is busy right now. Please try again in a moment.",
	domain.RecognitionAudio:          "I couldn't hear the microphone clearly. Please try again.",
	domain.RecognitionPermissions:    "I need microphone permission to hear you. Please allow it and try again.",
}

// HandleRecognitionFailure answers a turn where speech could not be turned
// into text. Session state is left untouched.
func (e *Engine) HandleRecognitionFailure(reason domain.RecognitionFailure) string {
	reply, ok := recognitionReplies[reason]
	if !ok {
		reply = msgDidNotCatch
	}
	e.logger.Info("speech recognition failed", "reason", string(reason))
	return reply
}
