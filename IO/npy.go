// Package IO reads and writes model weights: the published OpenAI checkpoint
// directory (.npy shards plus a shape manifest) and this module's own gob
// format.
package IO

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

// NpyArray is one array from a .npy file, flattened row-major and widened to
// float64.
type NpyArray struct {
	Shape []int
	Data  []float64
}

// Size is the element count declared by the shape.
func (a *NpyArray) Size() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

var npyMagic = []byte("\x93NUMPY")

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadNpy loads a little-endian float array in NumPy format v1.0 or v2.0.
// Supported dtypes are <f2, <f4 and <f8; everything is widened to float64.
func ReadNpy(path string) (*NpyArray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read npy: %w", err)
	}
	defer f.Close()
	arr, err := readNpy(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read npy %s: %w", path, err)
	}
	return arr, nil
}

func readNpy(r io.Reader) (*NpyArray, error) {
	head := make([]byte, 8)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(string(head), string(npyMagic)) {
		return nil, fmt.Errorf("bad magic %q", head[:6])
	}
	major := head[6]

	var headerLen int
	switch major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported npy version %d.%d", head[6], head[7])
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	dtype, fortran, shape, err := parseNpyHeader(string(header))
	if err != nil {
		return nil, err
	}
	if fortran {
		return nil, fmt.Errorf("fortran_order arrays are not supported")
	}

	arr := &NpyArray{Shape: shape}
	size := arr.Size()

	var width int
	switch dtype {
	case "<f2":
		width = 2
	case "<f4":
		width = 4
	case "<f8":
		width = 8
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}

	raw := make([]byte, size*width)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("array body: %w", err)
	}
	arr.Data = make([]float64, size)
	switch dtype {
	case "<f2":
		for i := 0; i < size; i++ {
			bits := binary.LittleEndian.Uint16(raw[2*i:])
			arr.Data[i] = float64(float16.Frombits(bits).Float32())
		}
	case "<f4":
		for i := 0; i < size; i++ {
			bits := binary.LittleEndian.Uint32(raw[4*i:])
			arr.Data[i] = float64(math.Float32frombits(bits))
		}
	case "<f8":
		for i := 0; i < size; i++ {
			bits := binary.LittleEndian.Uint64(raw[8*i:])
			arr.Data[i] = math.Float64frombits(bits)
		}
	}
	return arr, nil
}

func parseNpyHeader(header string) (dtype string, fortran bool, shape []int, err error) {
	m := descrRe.FindStringSubmatch(header)
	if m == nil {
		return "", false, nil, fmt.Errorf("header missing descr: %q", header)
	}
	dtype = m[1]

	m = fortranRe.FindStringSubmatch(header)
	if m == nil {
		return "", false, nil, fmt.Errorf("header missing fortran_order: %q", header)
	}
	fortran = m[1] == "True"

	m = shapeRe.FindStringSubmatch(header)
	if m == nil {
		return "", false, nil, fmt.Errorf("header missing shape: %q", header)
	}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return "", false, nil, fmt.Errorf("bad shape dimension %q", part)
		}
		shape = append(shape, d)
	}
	return dtype, fortran, shape, nil
}

// WriteNpy writes data as a v1.0 <f4 array, the dtype the checkpoint shards
// use. Precision above float32 is dropped.
func WriteNpy(path string, shape []int, data []float64) error {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if len(data) != size {
		return fmt.Errorf("write npy %s: %d values but shape %v holds %d", path, len(data), shape, size)
	}

	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	shapeStr := "(" + strings.Join(dims, ", ") + ")"
	if len(shape) == 1 {
		shapeStr = "(" + dims[0] + ",)"
	}
	dict := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': %s, }", shapeStr)
	// pad the full preamble to a 64-byte boundary, newline last
	pad := 64 - (len(npyMagic)+4+len(dict)+1)%64
	if pad == 64 {
		pad = 0
	}
	dict = dict + strings.Repeat(" ", pad) + "\n"

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write npy: %w", err)
	}
	w := bufio.NewWriter(f)
	w.Write(npyMagic)
	w.WriteByte(1)
	w.WriteByte(0)
	binary.Write(w, binary.LittleEndian, uint16(len(dict)))
	w.WriteString(dict)

	var quad [4]byte
	for _, v := range data {
		binary.LittleEndian.PutUint32(quad[:], math.Float32bits(float32(v)))
		w.Write(quad[:])
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write npy %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write npy %s: %w", path, err)
	}
	return nil
}
