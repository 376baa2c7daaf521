package types

// Kind discriminates display directives sent to the gallery page.
type Kind string

const (
	KindShowMessage Kind = "show_message"
	KindPromptOpen  Kind = "prompt_open"
	KindShowImage   Kind = "show_image"
	KindPlayAudio   Kind = "play_audio"
	KindAddChat     Kind = "add_chat"
	KindPlayers     Kind = "players"
)

// Directive is one instruction for the client page. Only the fields that
// belong to Method are set.
//
//	show_message: text, end_time?, countdown_text?
//	prompt_open:  text
//	show_image:   image, preload, width, end_time?, title?
//	play_audio:   url
//	add_chat:     text
//	players:      players
type Directive struct {
	Method        Kind    `json:"method"`
	Text          string  `json:"text,omitempty"`
	EndTime       float64 `json:"end_time,omitempty"` // unix seconds
	CountdownText string  `json:"countdown_text,omitempty"`
	Image         string  `json:"image,omitempty"`
	Preload       string  `json:"preload,omitempty"`
	Width         string  `json:"width,omitempty"`
	Title         string  `json:"title,omitempty"`
	URL           string  `json:"url,omitempty"`
	Players       string  `json:"players,omitempty"`
}

func ShowMessage(text string) Directive {
	return Directive{Method: KindShowMessage, Text: text}
}

func PromptOpen(text string) Directive {
	return Directive{Method: KindPromptOpen, Text: text}
}

func PlayAudio(url string) Directive {
	return Directive{Method: KindPlayAudio, URL: url}
}

func AddChat(text string) Directive {
	return Directive{Method: KindAddChat, Text: text}
}

func Players(names string) Directive {
	return Directive{Method: KindPlayers, Players: names}
}
