package docmanager

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

const progressEventName = "doc-progress"

// readEvents parses a text/event-stream body and calls fn per dispatched
// event. Comment lines and unknown fields are skipped.
func readEvents(r io.Reader, fn func(name string, data []byte)) error {
	br := bufio.NewReader(r)
	var (
		name string
		data bytes.Buffer
	)
	dispatch := func() {
		if data.Len() > 0 {
			payload := bytes.TrimSuffix(data.Bytes(), []byte("\n"))
			eventName := name
			if eventName == "" {
				eventName = "message"
			}
			fn(eventName, payload)
		}
		name = ""
		data.Reset()
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if line == "" && errors.Is(err, io.EOF) {
			return nil
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				name = value
			case "data":
				data.WriteString(value)
				data.WriteByte('\n')
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}
