package tlgan

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// checkpoint On-disk state of network: parameters in order of Network.Params()
type checkpoint struct {
	Name   string
	Params []*tensor.Dense
}

// SaveCheckpoint Writes every parameter of network to file
func SaveCheckpoint(path string, net *Network) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't create checkpoint '%s'", path))
	}
	state := checkpoint{
		Name:   net.Name,
		Params: net.Params(),
	}
	if err := gob.NewEncoder(f).Encode(&state); err != nil {
		f.Close()
		return errors.Wrap(err, fmt.Sprintf("Can't encode checkpoint '%s'", path))
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't close checkpoint '%s'", path))
	}
	return nil
}

// LoadCheckpoint Restores parameters of network from file. Network must have the same topology as saved one
func LoadCheckpoint(path string, net *Network) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't open checkpoint '%s'", path))
	}
	defer f.Close()
	var state checkpoint
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't decode checkpoint '%s'", path))
	}
	params := net.Params()
	if len(state.Params) != len(params) {
		return fmt.Errorf("Checkpoint '%s' holds %d parameters, but network '%s' has %d", path, len(state.Params), net.Name, len(params))
	}
	for i := range params {
		if !params[i].Shape().Eq(state.Params[i].Shape()) {
			return fmt.Errorf("Checkpoint parameter #%d has shape %v, but network expects %v", i, state.Params[i].Shape(), params[i].Shape())
		}
	}
	for i := range params {
		dst, ok := params[i].Data().([]float64)
		if !ok {
			return fmt.Errorf("Network parameter #%d has unexpected type %T", i, params[i].Data())
		}
		src, ok := state.Params[i].Data().([]float64)
		if !ok {
			return fmt.Errorf("Checkpoint parameter #%d has unexpected type %T", i, state.Params[i].Data())
		}
		copy(dst, src)
	}
	return nil
}
