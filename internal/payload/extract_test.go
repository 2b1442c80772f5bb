package payload

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) Object {
	t.Helper()
	var o Object
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return o
}

func TestObject_AbsentSafeAccessors(t *testing.T) {
	var nilObj Object
	if nilObj.String("x") != "" || nilObj.Bool("x") || nilObj.Object("x") != nil {
		t.Fatalf("nil object accessors must return zero values")
	}
	if nilObj.Object("a").Object("b").String("c") != "" {
		t.Fatalf("chained lookups on nil must not panic")
	}

	o := decode(t, `{"s":"v","n":3,"b":true,"o":{"k":"w"},"l":[{"i":1},"junk"],"wrong":42}`)
	if o.String("s") != "v" {
		t.Fatalf("String")
	}
	if n, ok := o.Int("n"); !ok || n != 3 {
		t.Fatalf("Int")
	}
	if !o.Bool("b") {
		t.Fatalf("Bool")
	}
	if o.Object("o").String("k") != "w" {
		t.Fatalf("Object")
	}
	if got := o.List("l"); len(got) != 1 {
		t.Fatalf("List should skip non-object elements, got %d", len(got))
	}
	if o.String("wrong") != "" {
		t.Fatalf("type mismatch must yield zero value")
	}
	if o.String("missing") != "" {
		t.Fatalf("missing key must yield zero value")
	}
}

func TestExtractContent_Text(t *testing.T) {
	msg := decode(t, `{"type":"text","text":{"body":"hello"}}`)
	c := ExtractContent(TypeText, msg)
	if c.Text != "hello" {
		t.Fatalf("expected text body, got %q", c.Text)
	}
}

func TestExtractContent_Audio(t *testing.T) {
	msg := decode(t, `{"audio":{"id":"a1","url":"https://cdn/a1","mime_type":"audio/ogg","voice":true}}`)
	c := ExtractContent(TypeAudio, msg)
	if c.AudioID != "a1" || c.AudioURL != "https://cdn/a1" || c.AudioMimeType != "audio/ogg" || !c.IsVoice {
		t.Fatalf("unexpected audio content: %+v", c)
	}
}

func TestExtractContent_Location(t *testing.T) {
	msg := decode(t, `{"location":{"latitude":12.5,"longitude":-7.25}}`)
	c := ExtractContent(TypeLocation, msg)
	if c.Latitude == nil || *c.Latitude != 12.5 {
		t.Fatalf("latitude: %+v", c.Latitude)
	}
	if c.Longitude == nil || *c.Longitude != -7.25 {
		t.Fatalf("longitude: %+v", c.Longitude)
	}
}

func TestExtractContent_Sticker(t *testing.T) {
	msg := decode(t, `{"sticker":{"id":"s1","mime_type":"image/webp","animated":true}}`)
	c := ExtractContent(TypeSticker, msg)
	if c.StickerID != "s1" || c.StickerMimeType != "image/webp" || !c.IsAnimated {
		t.Fatalf("unexpected sticker content: %+v", c)
	}
}

func TestExtractContent_Contacts(t *testing.T) {
	msg := decode(t, `{"contacts":[{"name":{"formatted_name":"Ada"}}]}`)
	c := ExtractContent(TypeContacts, msg)
	if len(c.ContactsData) == 0 {
		t.Fatalf("expected contacts data to be retained")
	}
	var roundtrip []map[string]any
	if err := json.Unmarshal(c.ContactsData, &roundtrip); err != nil || len(roundtrip) != 1 {
		t.Fatalf("contacts data not valid JSON: %v", err)
	}
}

// Every supported type must extract cleanly from a message missing all of its
// type-specific sub-fields.
func TestExtractContent_TotalOnEmptyObjects(t *testing.T) {
	types := []string{TypeText, TypeAudio, TypeImage, TypeVideo, TypeDocument, TypeLocation, TypeContacts, TypeSticker}
	for _, mt := range types {
		c := ExtractContent(mt, Object{})
		if c.Text != "" || c.AudioID != "" || c.ImageID != "" || c.VideoID != "" ||
			c.DocumentID != "" || c.StickerID != "" || c.IsVoice || c.IsAnimated {
			t.Fatalf("type %s: expected zero content, got %+v", mt, c)
		}
		if c.Latitude != nil || c.Longitude != nil || c.ContactsData != nil {
			t.Fatalf("type %s: expected nil pointers, got %+v", mt, c)
		}
	}
}

func TestExtractContent_UnknownType(t *testing.T) {
	msg := decode(t, `{"type":"reaction","reaction":{"emoji":"x"}}`)
	c := ExtractContent("reaction", msg)
	if c.Text != "" || c.AudioID != "" || c.ContactsData != nil {
		t.Fatalf("unknown type must produce empty content: %+v", c)
	}
}
