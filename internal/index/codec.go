package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/kaabil/faqbot/internal/domain"
)

// Vector file layout: magic "FBIX", uint32 version, uint32 dim, uint32 count,
// then count*dim little-endian float32 values.
var fileMagic = [4]byte{'F', 'B', 'I', 'X'}

const fileVersion = 1

// Meta is the JSON sidecar: position i in Items aligns with row i of the
// vector file.
type Meta struct {
	Items          []domain.FAQ `json:"items"`
	EmbeddingModel string       `json:"embedding_model"`
}

// WriteArtifacts persists both index files atomically (temp file + rename).
// All vectors must share one dimension.
func WriteArtifacts(indexPath, metaPath string, vectors [][]float32, meta Meta) error {
	if len(vectors) == 0 {
		return fmt.Errorf("no vectors to write")
	}
	dim := len(vectors[0])
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				domain.ErrVectorDimMismatch, i, len(vec), dim)
		}
	}

	if err := writeAtomic(indexPath, func(w io.Writer) error {
		return writeVectors(w, dim, vectors)
	}); err != nil {
		return fmt.Errorf("write vector file: %w", err)
	}

	if err := writeAtomic(metaPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return fmt.Errorf("write metadata file: %w", err)
	}

	return nil
}

func writeAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func writeVectors(w io.Writer, dim int, vectors [][]float32) error {
	if _, err := w.Write(fileMagic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	for _, v := range []uint32{fileVersion, uint32(dim), uint32(len(vectors))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	row := make([]byte, dim*4)
	for _, vec := range vectors {
		for i, f := range vec {
			binary.LittleEndian.PutUint32(row[i*4:], math.Float32bits(f))
		}
		if _, err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

func readVectors(path string) (int, [][]float32, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return 0, nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != fileMagic {
		return 0, nil, fmt.Errorf("not a faqbot index file (magic %q)", magic[:])
	}

	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return 0, nil, fmt.Errorf("read header: %w", err)
		}
	}
	if version != fileVersion {
		return 0, nil, fmt.Errorf("unsupported index file version %d", version)
	}
	if dim == 0 {
		return 0, nil, fmt.Errorf("index file declares zero dimensions")
	}

	vectors := make([][]float32, 0, count)
	row := make([]byte, int(dim)*4)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return 0, nil, fmt.Errorf("read row %d: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[j*4:]))
		}
		vectors = append(vectors, vec)
	}

	return int(dim), vectors, nil
}

func readMeta(path string) (Meta, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Meta{}, fmt.Errorf("open: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode: %w", err)
	}
	if meta.Items == nil {
		return Meta{}, fmt.Errorf("metadata file has no items list")
	}
	return meta, nil
}
