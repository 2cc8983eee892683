package file

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"
	"os"
	"reflect"
	"sync"
)

// Record is anything the queue can persist and restore.
type Record interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// File layout:
//
//	[crc32 of record payloads][offset of the first unread record][records...]
//
// where each record is a big endian uint16 length followed by the payload.
const (
	CRC32HashOffset int64 = 0
	CRC32HashSize   int64 = 4
	SkipAheadOffset       = CRC32HashOffset + CRC32HashSize
	SkipAheadSize   int64 = 8
	DataOffset            = SkipAheadOffset + SkipAheadSize
	HeadSize              = CRC32HashSize + SkipAheadSize
	MetaElementSize       = 2
)

var headPool = &sync.Pool{
	New: func() interface{} {
		return make([]byte, HeadSize)
	},
}

// NewQueue opens a queue stored in file. Ejected records are decoded into
// new values of pattern's type.
func NewQueue(file *os.File, pattern Record) (*Queue, error) {
	return (&Queue{
		typeOf: reflect.ValueOf(pattern).Elem().Type(),
		file:   file,
		order:  binary.BigEndian,
		sum:    crc32.NewIEEE(),
	}).checkFile()
}

type Queue struct {
	typeOf reflect.Type
	file   *os.File
	order  binary.ByteOrder
	mx     sync.Mutex

	sum   hash.Hash32
	count int
	mw    io.Writer
}

func (f *Queue) Len() int {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.count
}

func (f *Queue) Name() string {
	return f.file.Name()
}

func (f *Queue) Close() error {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.file.Close()
}

func (f *Queue) checkFile() (*Queue, error) {
	f.mw = io.MultiWriter(f.file, f.sum)

	_, err := f.file.Seek(0, io.SeekStart)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, HeadSize)
	n, err := io.ReadFull(f.file, buf)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			if err := f.writeHead(buf, 0, DataOffset); err != nil {
				return nil, err
			}
			_, err = f.file.Seek(DataOffset, io.SeekStart)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrCorrupted
		}
		return nil, err
	}

	fileSum := f.order.Uint32(buf[0:CRC32HashSize])
	skipAhead := int64(f.order.Uint64(buf[CRC32HashSize:HeadSize]))
	currOffset := DataOffset

	tr := io.TeeReader(f.file, f.sum)

	for {
		size, err := f.readMeta(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrCorrupted
			}
			return nil, err
		}

		currOffset += MetaElementSize

		if len(buf) < size {
			buf = make([]byte, size)
		}

		_, err = io.ReadFull(tr, buf[:size])
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrCorrupted
			}
			return nil, err
		}

		currOffset += int64(size)

		if currOffset > skipAhead {
			f.count++
		}
	}

	if f.sum.Sum32() != fileSum || skipAhead > currOffset {
		return nil, ErrCorrupted
	}

	return f, nil
}

func (f *Queue) writeHead(bs []byte, sum uint32, skipAhead int64) error {
	f.order.PutUint32(bs[0:CRC32HashSize], sum)
	f.order.PutUint64(bs[CRC32HashSize:HeadSize], uint64(skipAhead))
	_, err := f.file.WriteAt(bs[0:HeadSize], CRC32HashOffset)
	return err
}

func (f *Queue) readMeta(bs []byte) (size int, err error) {
	metaElementBuf := bs[0:MetaElementSize]

	_, err = io.ReadFull(f.file, metaElementBuf)
	if err != nil {
		return 0, err
	}

	return int(f.order.Uint16(metaElementBuf)), nil
}

func (f *Queue) writeMeta(bs []byte, size int) error {
	metaElementBuf := bs[0:MetaElementSize]

	f.order.PutUint16(metaElementBuf, uint16(size))

	_, err := f.file.Write(metaElementBuf)
	return err
}

func (f *Queue) updateSum(bs []byte) error {
	crc32SumBuf := bs[0:CRC32HashSize]

	f.order.PutUint32(crc32SumBuf, f.sum.Sum32())
	_, err := f.file.WriteAt(crc32SumBuf, CRC32HashOffset)
	return err
}

func (f *Queue) Push(model encoding.BinaryMarshaler) error {
	data, err := model.MarshalBinary()
	if err != nil {
		return err
	}

	size := len(data)

	if size > math.MaxUint16 {
		return fmt.Errorf("record too large: %d over %d", size, math.MaxUint16)
	}

	bs := headPool.Get().([]byte)
	defer headPool.Put(bs)

	f.mx.Lock()
	defer f.mx.Unlock()

	err = f.writeMeta(bs, size)
	if err != nil {
		return err
	}

	_, err = f.mw.Write(data)
	if err != nil {
		return err
	}

	f.count++

	return f.updateSum(bs)
}

// Eject removes up to limit records from the head of the queue. A negative
// limit drains the queue. Once drained the file is truncated back to its
// header. A record that fails to decode is dropped from the queue and
// reported through an error wrapping ErrUndecodable, while the records
// around it are still returned.
func (f *Queue) Eject(limit int) (models []interface{}, err error) {
	f.mx.Lock()
	defer f.mx.Unlock()

	if limit > f.count || limit < 0 {
		limit = f.count
	}

	if limit == 0 {
		return nil, nil
	}

	skipAheadBuf := make([]byte, SkipAheadSize)
	_, err = f.file.ReadAt(skipAheadBuf, SkipAheadOffset)
	if err != nil {
		return nil, err
	}
	skipAhead := int64(f.order.Uint64(skipAheadBuf))

	_, err = f.file.Seek(skipAhead, io.SeekStart)
	if err != nil {
		_, _ = f.file.Seek(0, io.SeekEnd)
		return nil, err
	}

	models = make([]interface{}, 0, limit)
	consumed := false
	defer func() {
		if !consumed {
			if _, seekErr := f.file.Seek(0, io.SeekEnd); seekErr != nil && err == nil {
				err = seekErr
			}
			return
		}
		err = mergeErr(err, f.commit(skipAheadBuf, skipAhead))
	}()

	buf := make([]byte, HeadSize)
	for len(models) < limit && f.count > 0 {
		size, readErr := f.readMeta(buf)
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return models, readErr
		}

		if len(buf) < size {
			buf = make([]byte, size)
		}

		dataBuf := buf[0:size]
		_, readErr = io.ReadFull(f.file, dataBuf)
		if readErr != nil {
			return models, readErr
		}

		skipAhead += MetaElementSize + int64(size)
		f.count--
		consumed = true

		e := reflect.New(f.typeOf).Interface().(encoding.BinaryUnmarshaler)
		if decodeErr := e.UnmarshalBinary(dataBuf); decodeErr != nil {
			if err == nil {
				err = fmt.Errorf("%w at offset %d: %v", ErrUndecodable, skipAhead-MetaElementSize-int64(size), decodeErr)
			}
			continue
		}
		models = append(models, e)
	}

	return models, err
}

// commit persists the head offset after records were consumed and moves the
// write offset back to the end of the file.
func (f *Queue) commit(skipAheadBuf []byte, skipAhead int64) error {
	if f.count == 0 {
		return f.reset()
	}

	f.order.PutUint64(skipAheadBuf, uint64(skipAhead))
	_, err := f.file.WriteAt(skipAheadBuf, SkipAheadOffset)
	_, seekErr := f.file.Seek(0, io.SeekEnd)
	return mergeErr(err, seekErr)
}

func mergeErr(first, second error) error {
	if first != nil {
		return first
	}
	return second
}

func (f *Queue) reset() error {
	if err := f.file.Truncate(DataOffset); err != nil {
		return err
	}
	f.sum.Reset()

	bs := headPool.Get().([]byte)
	defer headPool.Put(bs)
	if err := f.writeHead(bs, 0, DataOffset); err != nil {
		return err
	}

	_, err := f.file.Seek(DataOffset, io.SeekStart)
	return err
}
