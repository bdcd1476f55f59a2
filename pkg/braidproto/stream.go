package braidproto

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
)

// separator terminates every update in a subscription stream
const separator = "\r\n\r\n\r\n\r\n\r\n"

// ErrMalformedUpdate is returned when a stream does not follow the framing
var ErrMalformedUpdate = errors.New("malformed braid update")

// WriteUpdate frames a single update onto w
func WriteUpdate(w io.Writer, u *Update) error {
	var buf bytes.Buffer

	// Write headers
	fmt.Fprintf(&buf, "Version: %s\r\n", u.Version)
	fmt.Fprintf(&buf, "Parents: %s\r\n", strings.Join(u.Parents, ", "))
	if u.MergeType != "" {
		fmt.Fprintf(&buf, "Merge-Type: %s\r\n", u.MergeType)
	}

	if len(u.Patches) > 0 {
		fmt.Fprintf(&buf, "Patches: %d\r\n\r\n", len(u.Patches))

		// Write each patch
		for i, p := range u.Patches {
			if i > 0 {
				buf.WriteString("\r\n\r\n")
			}
			fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(p.Content))
			fmt.Fprintf(&buf, "Content-Range: %s %s\r\n", p.Unit, p.Range)
			buf.WriteString("\r\n")
			buf.WriteString(p.Content)
		}
	} else {
		fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(u.Body))
		buf.WriteString("\r\n")
		buf.Write(u.Body)
	}

	// Add separator for subscription stream
	buf.WriteString(separator)

	_, err := w.Write(buf.Bytes())
	return err
}

// Reader parses a subscription stream written by WriteUpdate
type Reader struct {
	br *bufio.Reader
	tp *textproto.Reader
}

// NewReader creates a Reader on top of r
func NewReader(r io.Reader) *Reader {
	br := bufio.NewReader(r)
	return &Reader{br: br, tp: textproto.NewReader(br)}
}

// Next reads the next update. It returns io.EOF when the stream ends
// cleanly between updates.
func (r *Reader) Next() (*Update, error) {
	h, err := r.header()
	if err != nil {
		return nil, err
	}

	u := &Update{
		Version:   h.Get("Version"),
		Parents:   splitList(h.Get("Parents")),
		MergeType: h.Get("Merge-Type"),
	}

	if n := h.Get("Patches"); n != "" {
		count, err := strconv.Atoi(n)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("%w: bad Patches header %q", ErrMalformedUpdate, n)
		}
		u.Patches = make([]Patch, 0, count)
		for i := 0; i < count; i++ {
			p, err := r.patch()
			if err != nil {
				return nil, fmt.Errorf("patch %d: %w", i, err)
			}
			u.Patches = append(u.Patches, p)
		}
		return u, nil
	}

	body, err := r.body(h)
	if err != nil {
		return nil, err
	}
	u.Body = body
	return u, nil
}

func (r *Reader) patch() (Patch, error) {
	h, err := r.header()
	if err != nil {
		return Patch{}, unexpected(err)
	}
	unit, rng, _ := strings.Cut(h.Get("Content-Range"), " ")
	content, err := r.body(h)
	if err != nil {
		return Patch{}, err
	}
	return Patch{Unit: unit, Range: rng, Content: string(content)}, nil
}

func (r *Reader) body(h textproto.MIMEHeader) ([]byte, error) {
	length, err := strconv.Atoi(h.Get("Content-Length"))
	if err != nil || length < 0 {
		return nil, fmt.Errorf("%w: bad Content-Length %q", ErrMalformedUpdate, h.Get("Content-Length"))
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return nil, unexpected(err)
	}
	return body, nil
}

// header reads the next non-empty header block, skipping the blank lines
// that separate updates and patches.
func (r *Reader) header() (textproto.MIMEHeader, error) {
	for {
		h, err := r.tp.ReadMIMEHeader()
		if len(h) > 0 {
			if err != nil {
				return nil, unexpected(err)
			}
			return h, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
