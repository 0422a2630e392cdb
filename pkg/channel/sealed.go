package channel

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/absmach/fedtree/job"
)

const KeySize = 32

var (
	errKeySize       = fmt.Errorf("key must be %d bytes (AES-256)", KeySize)
	errShortEnvelope = errors.New("sealed value too short")
)

type sealedChannel struct {
	next Channel
	aead cipher.AEAD
}

// Sealed encrypts every value with AES-GCM under a key shared by all the
// participants of a job. The variable name is bound as additional data.
func Sealed(next Channel, key []byte) (Channel, error) {
	if len(key) != KeySize {
		return nil, errKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &sealedChannel{next: next, aead: aead}, nil
}

// SealedFactory wraps every channel opened by f.
func SealedFactory(f Factory, key []byte) Factory {
	return func(ctx context.Context, jobID, self string) (Channel, error) {
		ch, err := f(ctx, jobID, self)
		if err != nil {
			return nil, err
		}

		return Sealed(ch, key)
	}
}

func (c *sealedChannel) Publish(ctx context.Context, name string, value []byte, to []job.Participant) error {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return wrap("seal", name, err)
	}

	return c.next.Publish(ctx, name, c.aead.Seal(nonce, nonce, value, []byte(name)), to)
}

func (c *sealedChannel) Receive(ctx context.Context, name string, from job.Participant) ([]byte, error) {
	envelope, err := c.next.Receive(ctx, name, from)
	if err != nil {
		return nil, err
	}

	n := c.aead.NonceSize()
	if len(envelope) < n {
		return nil, wrap("open", name, errShortEnvelope)
	}

	value, err := c.aead.Open(nil, envelope[:n], envelope[n:], []byte(name))
	if err != nil {
		return nil, wrap("open", name, err)
	}

	return value, nil
}
