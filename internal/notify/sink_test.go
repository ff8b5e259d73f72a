package notify

import "testing"

type recordSink struct {
	keys []string
}

func (r *recordSink) Notify(message, key string) {
	r.keys = append(r.keys, key)
}

func TestTeeFansOut(t *testing.T) {
	a := &recordSink{}
	b := &recordSink{}
	sink := Tee(a, b)

	sink.Notify("upload failed", "ingest-upload-failed")

	for _, r := range []*recordSink{a, b} {
		if len(r.keys) != 1 || r.keys[0] != "ingest-upload-failed" {
			t.Errorf("sink recorded %v", r.keys)
		}
	}
}

func TestLogSinkDoesNotPanicWithNilLogger(t *testing.T) {
	sink := NewLogSink(nil)
	sink.Notify("msg", "key")
}
