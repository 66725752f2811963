package chunking

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer is the codec the chunker counts and decodes tokens with.
// Decode of a suffix of Encode(text) must reproduce the corresponding
// byte suffix of text; BPE codecs such as tiktoken satisfy this.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
	Count(text string) int
}

// TiktokenTokenizer wraps a tiktoken encoding (cl100k_base by default).
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer resolves the codec by model name first, then by
// encoding name.
func NewTiktokenTokenizer(name string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(ids []int) string {
	return t.enc.Decode(ids)
}

func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.Encode(text))
}
