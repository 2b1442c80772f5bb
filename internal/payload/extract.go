package payload

import "encoding/json"

// Message types supported by the content extractor. Anything else is stored
// with its raw payload only.
const (
	TypeText     = "text"
	TypeAudio    = "audio"
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeDocument = "document"
	TypeLocation = "location"
	TypeContacts = "contacts"
	TypeSticker  = "sticker"
)

// Content is the typed projection of one inbound message. Field groups are
// mutually exclusive: only the group matching the message type is populated.
type Content struct {
	Text string

	AudioID       string
	AudioURL      string
	AudioMimeType string
	IsVoice       bool

	ImageID       string
	ImageURL      string
	ImageMimeType string
	ImageCaption  string

	VideoID       string
	VideoURL      string
	VideoMimeType string
	VideoCaption  string

	DocumentID       string
	DocumentURL      string
	DocumentFilename string
	DocumentMimeType string

	Latitude  *float64
	Longitude *float64

	StickerID       string
	StickerURL      string
	StickerMimeType string
	IsAnimated      bool

	// ContactsData is the opaque shared-contacts list, retained verbatim.
	ContactsData json.RawMessage
}

// ExtractContent maps one raw message object to its typed content.
//
// The function is total: unknown message types and missing sub-fields at any
// nesting level produce zero values, never an error. The nested object is
// keyed by the message type itself (message["audio"] for type "audio", etc).
func ExtractContent(messageType string, msg Object) Content {
	var c Content

	switch messageType {
	case TypeText:
		c.Text = msg.Object("text").String("body")
	case TypeAudio:
		audio := msg.Object("audio")
		c.AudioID = audio.String("id")
		c.AudioURL = audio.String("url")
		c.AudioMimeType = audio.String("mime_type")
		c.IsVoice = audio.Bool("voice")
	case TypeImage:
		image := msg.Object("image")
		c.ImageID = image.String("id")
		c.ImageURL = image.String("url")
		c.ImageMimeType = image.String("mime_type")
		c.ImageCaption = image.String("caption")
	case TypeVideo:
		video := msg.Object("video")
		c.VideoID = video.String("id")
		c.VideoURL = video.String("url")
		c.VideoMimeType = video.String("mime_type")
		c.VideoCaption = video.String("caption")
	case TypeDocument:
		doc := msg.Object("document")
		c.DocumentID = doc.String("id")
		c.DocumentURL = doc.String("url")
		c.DocumentFilename = doc.String("filename")
		c.DocumentMimeType = doc.String("mime_type")
	case TypeLocation:
		loc := msg.Object("location")
		if lat, ok := loc.Float("latitude"); ok {
			c.Latitude = &lat
		}
		if lon, ok := loc.Float("longitude"); ok {
			c.Longitude = &lon
		}
	case TypeSticker:
		sticker := msg.Object("sticker")
		c.StickerID = sticker.String("id")
		c.StickerURL = sticker.String("url")
		c.StickerMimeType = sticker.String("mime_type")
		c.IsAnimated = sticker.Bool("animated")
	case TypeContacts:
		if v := msg.Value("contacts"); v != nil {
			if b, err := json.Marshal(v); err == nil {
				c.ContactsData = json.RawMessage(b)
			}
		}
	}

	return c
}
