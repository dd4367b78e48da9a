package emulated

import (
	"bytes"
	"encoding/gob"
	"errors"
	"os"
	"sync"
	"time"
)

// Persist saves and loads the register store of a Bus to a file using gob.
// It also handles timed saves.
type Persist struct {
	sync.Mutex

	// Filename is the name of the file to use to persist the registers
	Filename string
	// Bus is the emulated bus whose registers are persisted
	Bus *Bus
	// SaveInterval is the minimum interval between conditional saves.
	SaveInterval time.Duration

	buffer bytes.Buffer

	savedWrites uint64
	nextSave    time.Time
}

const (
	// RetrySaveInterval is the delay between save attempts if the previous one failed.
	RetrySaveInterval = 2 * time.Second
)

var (
	// ErrorNoFilename is returned when trying to load without specifying a file
	ErrorNoFilename = errors.New("Filename not specified")
)

// Load restores the registers of the Bus from the file
func (p *Persist) Load() error {
	p.Lock()
	defer p.Unlock()

	if p.Filename == "" {
		return ErrorNoFilename
	}

	p.buffer.Reset()
	file, err := os.Open(p.Filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var s Snapshot
	_, err = p.buffer.ReadFrom(file)
	if err == nil {
		err = gob.NewDecoder(&p.buffer).Decode(&s)
	}
	if err != nil {
		return err
	}

	p.Bus.Restore(s)
	p.savedWrites = p.Bus.Writes()
	return nil
}

func (p *Persist) save() error {
	if p.Filename == "" {
		return nil
	}

	tmpName := p.Filename + ".tmp"
	writes := p.Bus.Writes()

	p.buffer.Reset()
	err := gob.NewEncoder(&p.buffer).Encode(p.Bus.Snapshot())
	if err != nil {
		goto done
	}

	err = os.WriteFile(tmpName, p.buffer.Bytes(), 0600)
	if err != nil {
		goto done
	}

	err = os.Rename(tmpName, p.Filename)

done:
	if err == nil {
		p.savedWrites = writes
		p.nextSave = time.Now().Add(p.SaveInterval)
	} else {
		p.nextSave = time.Now().Add(RetrySaveInterval)
	}

	return err
}

// Save writes the registers to file, regardless if they changed or how long ago the previous save was.
func (p *Persist) Save() error {
	p.Lock()
	defer p.Unlock()

	return p.save()
}

// SaveConditional saves if the Bus was written since the last save and the minimum
// SaveInterval has passed.
func (p *Persist) SaveConditional() error {
	if p.Filename == "" {
		return nil
	}

	var err error

	p.Lock()
	if p.Bus.Writes() != p.savedWrites && time.Now().After(p.nextSave) {
		err = p.save()
	}
	p.Unlock()

	return err
}
