package pullrequests

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Labels decodes a label array whose elements are either bare strings or
// objects with a "name" field. Order is preserved; nameless objects and
// other element types are dropped.
type Labels []string

func (l *Labels) UnmarshalJSON(data []byte) error {
	out := Labels{}
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		*l = out
		return d.Null()
	}

	err := d.Arr(func(d *jx.Decoder) error {
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			out = append(out, s)
		case jx.Object:
			var name string
			if err := d.Obj(func(d *jx.Decoder, key string) error {
				if key != "name" || d.Next() != jx.String {
					return d.Skip()
				}
				v, err := d.Str()
				name = v
				return err
			}); err != nil {
				return err
			}
			if name != "" {
				out = append(out, name)
			}
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "decode labels")
	}

	*l = out
	return nil
}
