package coap

import (
	"fmt"
	"iter"
)

// Method is a CoAP request method understood by the transport.
type Method int

const (
	GET Method = iota
	POST
	PUT
)

// String returns the transport token for m. These are coap-client method
// names, not HTTP verbs.
func (m Method) String() string {
	switch m {
	case GET:
		return "get"
	case POST:
		return "post"
	case PUT:
		return "put"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// Transport flags, in the order they are emitted.
const (
	FlagMethod  byte = 'm'
	FlagUser    byte = 'u'
	FlagKey     byte = 'k'
	FlagPayload byte = 'e'
)

// Pair is a single flag/value argument for the transport.
type Pair struct {
	Flag  byte
	Value string
}

// RequestOptions describes a single request intent. It is a value type:
// every builder method returns a modified copy and leaves the receiver
// untouched.
type RequestOptions struct {
	method  *string
	user    *string
	key     *string
	payload *string
}

// Build returns empty RequestOptions.
func Build() RequestOptions {
	return RequestOptions{}
}

// NewRequestOptions sets every field at once.
func NewRequestOptions(method Method, user, key, payload string) RequestOptions {
	return Build().Method(method).User(user).Key(key).Payload(payload)
}

// Method returns a copy of o with the method set.
func (o RequestOptions) Method(m Method) RequestOptions {
	o.method = ptr(m.String())
	return o
}

// User returns a copy of o with the DTLS identity set.
func (o RequestOptions) User(user string) RequestOptions {
	o.user = ptr(user)
	return o
}

// Key returns a copy of o with the pre-shared key set.
func (o RequestOptions) Key(key string) RequestOptions {
	o.key = ptr(key)
	return o
}

// Payload returns a copy of o with the request body set.
func (o RequestOptions) Payload(payload string) RequestOptions {
	o.payload = ptr(payload)
	return o
}

// Pairs returns the set fields as flag/value pairs in the order
// method, user, key, payload.
func (o RequestOptions) Pairs() []Pair {
	fields := []struct {
		flag  byte
		value *string
	}{
		{FlagMethod, o.method},
		{FlagUser, o.user},
		{FlagKey, o.key},
		{FlagPayload, o.payload},
	}

	pairs := make([]Pair, 0, len(fields))
	for _, f := range fields {
		if f.value != nil {
			pairs = append(pairs, Pair{Flag: f.flag, Value: *f.value})
		}
	}

	return pairs
}

// Args renders o as coap-client arguments, one "-<flag> <value>" pair per
// set field followed by the endpoint as the final positional argument.
func (o RequestOptions) Args(endpoint string) []string {
	s := o.Stream()

	args := make([]string, 0, 2*len(s.pending)+1)
	for flag, value := range s.All() {
		args = append(args, "-"+string(flag), value)
	}

	return append(args, endpoint)
}

// Stream returns a single-pass stream over o's pairs.
func (o RequestOptions) Stream() *Stream {
	return &Stream{pending: o.Pairs()}
}

// Stream yields each pair exactly once. Once drained it yields nothing.
type Stream struct {
	pending []Pair
}

// Next returns the next pair and removes it from the stream.
func (s *Stream) Next() (Pair, bool) {
	if len(s.pending) == 0 {
		return Pair{}, false
	}

	p := s.pending[0]
	s.pending = s.pending[1:]

	return p, true
}

// All drains the stream, yielding flag and value.
func (s *Stream) All() iter.Seq2[byte, string] {
	return func(yield func(byte, string) bool) {
		for {
			p, ok := s.Next()
			if !ok || !yield(p.Flag, p.Value) {
				return
			}
		}
	}
}

func ptr(s string) *string { return &s }
