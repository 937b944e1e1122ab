package audit

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// WriteJSONL writes one JSON object per finding followed by a summary line.
func WriteJSONL(w io.Writer, r *Report) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	for i := range r.Findings {
		f := &r.Findings[i]
		e.Reset()
		e.Obj(func(e *jx.Encoder) {
			e.Field("check", func(e *jx.Encoder) { e.Str(string(f.Check)) })
			e.Field("subject", func(e *jx.Encoder) { e.Str(f.Subject) })
			if f.Detail != "" {
				e.Field("detail", func(e *jx.Encoder) { e.Str(f.Detail) })
			}
			if !f.Expected.IsZero() || !f.Actual.IsZero() {
				e.Field("expected", func(e *jx.Encoder) { e.Num(jx.Num(f.Expected.String())) })
				e.Field("actual", func(e *jx.Encoder) { e.Num(jx.Num(f.Actual.String())) })
			}
		})
		e.RawStr("\n")
		if _, err := e.WriteTo(w); err != nil {
			return errors.Wrap(err, "write finding")
		}
	}

	e.Reset()
	e.Obj(func(e *jx.Encoder) {
		e.Field("summary", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("findings", func(e *jx.Encoder) { e.Int(len(r.Findings)) })
				e.Field("annulled", func(e *jx.Encoder) { e.Int(r.Scanned.Annulled) })
				e.Field("archived", func(e *jx.Encoder) { e.Int(r.Scanned.Archived) })
				e.Field("openTills", func(e *jx.Encoder) { e.Int(r.Scanned.OpenTills) })
				e.Field("closedTills", func(e *jx.Encoder) { e.Int(r.Scanned.ClosedTills) })
			})
		})
	})
	e.RawStr("\n")
	if _, err := e.WriteTo(w); err != nil {
		return errors.Wrap(err, "write summary")
	}
	return nil
}
