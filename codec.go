package serial

import (
	"encoding/binary"
	"fmt"
)

// itemCodec converts between items of type T and their wire bytes.
// size is the only place the byte width of T is computed.
type itemCodec[T any] struct {
	size  int
	order binary.ByteOrder
}

func newItemCodec[T any](order binary.ByteOrder) (itemCodec[T], error) {
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		return itemCodec[T]{}, fmt.Errorf("%w: %T", ErrItemType, zero)
	}
	c := itemCodec[T]{size: size, order: order}
	if err := c.checkDecodable(); err != nil {
		return itemCodec[T]{}, fmt.Errorf("%w: %T: %v", ErrItemType, zero, err)
	}
	return c, nil
}

// checkDecodable decodes one zeroed item. encoding/binary can write structs
// with unexported fields but panics when filling them in.
func (c itemCodec[T]) checkDecodable() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	_, err = c.decode(make([]T, 1), make([]byte, c.size))
	return err
}

// encode serializes items into len(items)*size bytes.
func (c itemCodec[T]) encode(items []T) ([]byte, error) {
	return binary.Append(make([]byte, 0, len(items)*c.size), c.order, items)
}

// decode fills dst from raw, which must hold a whole number of items.
func (c itemCodec[T]) decode(dst []T, raw []byte) (int, error) {
	n := len(raw) / c.size
	if _, err := binary.Decode(raw[:n*c.size], c.order, dst[:n]); err != nil {
		return 0, err
	}
	return n, nil
}
