package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/san-kum/beamsim/internal/sim"
)

// finalEncMode is deterministic so identical states encode to identical bytes.
var finalEncMode cbor.EncMode

var finalDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.CoreDetEncOptions()
	encOpts.NilContainers = cbor.NilContainerAsNull
	finalEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create final state CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	finalDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create final state CBOR decoder mode: %v", err))
	}
}

// Field is one introspected state array. Scalars have no dims and one value.
type Field struct {
	Name string    `cbor:"1,keyasint"`
	Dims []int     `cbor:"2,keyasint"`
	Data []float64 `cbor:"3,keyasint"`
}

type FinalState struct {
	Fields []Field `cbor:"1,keyasint"`
}

// Lookup returns the named field.
func (f *FinalState) Lookup(name string) (Field, bool) {
	for _, fd := range f.Fields {
		if fd.Name == name {
			return fd, true
		}
	}
	return Field{}, false
}

// Capture copies every field a state exposes through Array.
func Capture(s sim.State) *FinalState {
	out := &FinalState{}
	for i := 0; ; i++ {
		info, ok := s.Array(i)
		if !ok {
			break
		}
		fd := Field{Name: info.Name}
		if info.NDim() == 0 && info.Scalar != nil {
			fd.Data = []float64{*info.Scalar}
		} else {
			fd.Dims = append([]int(nil), info.Dims...)
			fd.Data = append([]float64(nil), info.Data...)
		}
		out.Fields = append(out.Fields, fd)
	}
	return out
}

func EncodeFinal(s sim.State) ([]byte, error) {
	return finalEncMode.Marshal(Capture(s))
}

func DecodeFinal(data []byte) (*FinalState, error) {
	var f FinalState
	if err := finalDecMode.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
