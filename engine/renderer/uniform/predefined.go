package uniform

import (
	"github.com/spaghettifunk/rendercore/engine/math"
	"github.com/spaghettifunk/rendercore/engine/renderer/metadata"
)

// PredefinedType is a uniform the renderer fills in itself.
type PredefinedType uint8

const (
	ViewRect PredefinedType = iota
	ViewTexel
	View
	InvView
	Proj
	InvProj
	ViewProj
	InvViewProj
	Model
	ModelView
	ModelViewProj
	AlphaRef
	PredefinedCount
)

var predefinedNames = [PredefinedCount]string{
	ViewRect:      "u_viewRect",
	ViewTexel:     "u_viewTexel",
	View:          "u_view",
	InvView:       "u_invView",
	Proj:          "u_proj",
	InvProj:       "u_invProj",
	ViewProj:      "u_viewProj",
	InvViewProj:   "u_invViewProj",
	Model:         "u_model",
	ModelView:     "u_modelView",
	ModelViewProj: "u_modelViewProj",
	AlphaRef:      "u_alphaRef4",
}

func (p PredefinedType) String() string {
	if p < PredefinedCount {
		return predefinedNames[p]
	}
	return "unknown"
}

// PredefinedByName maps a shader uniform name to its predefined type.
func PredefinedByName(name string) (PredefinedType, bool) {
	for i, n := range predefinedNames {
		if n == name {
			return PredefinedType(i), true
		}
	}
	return PredefinedCount, false
}

// PredefinedUniform is one entry of a shader's predefined table.
type PredefinedUniform struct {
	Type     PredefinedType
	Loc      uint16
	Count    uint16
	Fragment bool
}

// PredefinedValues are the inputs of one draw.
type PredefinedValues struct {
	Rect     metadata.Rect
	View     math.Mat4
	Proj     math.Mat4
	Model    []math.Mat4
	AlphaRef float32
}

func mat4Bytes(m ...math.Mat4) []byte {
	f := make([]float32, 0, 16*len(m))
	for _, x := range m {
		f = append(f, x.Data[:]...)
	}
	return Float32Bytes(f)
}

// WritePredefined fills the table of the bound program from v.
func (e *Engine) WritePredefined(table []PredefinedUniform, v *PredefinedValues) error {
	model := math.NewMat4Identity()
	if len(v.Model) > 0 {
		model = v.Model[0]
	}
	for _, p := range table {
		t := Vec4
		if p.Fragment {
			t |= FragmentBit
		}
		mt := Mat4
		if p.Fragment {
			mt |= FragmentBit
		}

		var err error
		switch p.Type {
		case ViewRect:
			err = e.Write(t, p.Loc, 1, Float32Bytes([]float32{
				float32(v.Rect.X), float32(v.Rect.Y), float32(v.Rect.Width), float32(v.Rect.Height),
			}))
		case ViewTexel:
			var w, h float32
			if v.Rect.Width > 0 {
				w = 1.0 / float32(v.Rect.Width)
			}
			if v.Rect.Height > 0 {
				h = 1.0 / float32(v.Rect.Height)
			}
			err = e.Write(t, p.Loc, 1, Float32Bytes([]float32{w, h, 0, 0}))
		case View:
			err = e.Write(mt, p.Loc, 1, mat4Bytes(v.View))
		case InvView:
			err = e.Write(mt, p.Loc, 1, mat4Bytes(v.View.Inverse()))
		case Proj:
			err = e.Write(mt, p.Loc, 1, mat4Bytes(v.Proj))
		case InvProj:
			err = e.Write(mt, p.Loc, 1, mat4Bytes(v.Proj.Inverse()))
		case ViewProj:
			err = e.Write(mt, p.Loc, 1, mat4Bytes(v.View.Mul(v.Proj)))
		case InvViewProj:
			err = e.Write(mt, p.Loc, 1, mat4Bytes(v.View.Mul(v.Proj).Inverse()))
		case Model:
			num := min(uint16(len(v.Model)), p.Count)
			if num == 0 {
				err = e.Write(mt, p.Loc, 1, mat4Bytes(model))
			} else {
				err = e.Write(mt, p.Loc, num, mat4Bytes(v.Model[:num]...))
			}
		case ModelView:
			err = e.Write(mt, p.Loc, 1, mat4Bytes(model.Mul(v.View)))
		case ModelViewProj:
			err = e.Write(mt, p.Loc, 1, mat4Bytes(model.Mul(v.View).Mul(v.Proj)))
		case AlphaRef:
			err = e.Write(t, p.Loc, 1, Float32Bytes([]float32{v.AlphaRef, 0, 0, 0}))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
