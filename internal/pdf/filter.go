package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// maxDecoded bounds the size of a decoded structural stream.
const maxDecoded = 64 << 20

// decode applies the stream's filter chain. Only the filters used for
// cross-reference and object streams are supported.
func decode(o *object) ([]byte, error) {
	f, ok := o.dict["Filter"]
	if !ok {
		return o.stream, nil
	}
	var filters []*object
	switch f.kind {
	case kindName:
		filters = []*object{f}
	case kindArray:
		filters = f.items
	}
	var params []*object
	if p, ok := o.dict["DecodeParms"]; ok {
		if p.kind == kindArray {
			params = p.items
		} else {
			params = []*object{p}
		}
	}

	data := o.stream
	for i, f := range filters {
		var parms dict
		if i < len(params) && params[i].kind == kindDict {
			parms = params[i].dict
		}
		var err error
		switch name := string(f.text); name {
		case "FlateDecode", "Fl":
			data, err = inflate(data, parms)
		default:
			err = fmt.Errorf("unsupported filter %s", name)
		}
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func inflate(data []byte, parms dict) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxDecoded+1))
	if err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	if len(out) > maxDecoded {
		return nil, fmt.Errorf("flate: stream exceeds %d bytes", maxDecoded)
	}
	if p, _ := parms.integer("Predictor"); p >= 10 {
		return unpredictPNG(out, parms), nil
	}
	return out, nil
}

// unpredictPNG reverses the PNG row filters applied before compression.
func unpredictPNG(data []byte, parms dict) []byte {
	colors, bpc, columns := int64(1), int64(8), int64(1)
	if v, ok := parms.integer("Colors"); ok && v > 0 {
		colors = v
	}
	if v, ok := parms.integer("BitsPerComponent"); ok && v > 0 {
		bpc = v
	}
	if v, ok := parms.integer("Columns"); ok && v > 0 {
		columns = v
	}
	row := int((columns*colors*bpc + 7) / 8)
	bpp := int((colors*bpc + 7) / 8)
	stride := row + 1
	rows := len(data) / stride

	out := make([]byte, rows*row)
	prev := make([]byte, row)
	for r := 0; r < rows; r++ {
		src := data[r*stride+1 : (r+1)*stride]
		dst := out[r*row : (r+1)*row]
		for i := range dst {
			var left, upLeft byte
			if i >= bpp {
				left, upLeft = dst[i-bpp], prev[i-bpp]
			}
			up := prev[i]
			switch data[r*stride] {
			case 1:
				dst[i] = src[i] + left
			case 2:
				dst[i] = src[i] + up
			case 3:
				dst[i] = src[i] + byte((int(left)+int(up))/2)
			case 4:
				dst[i] = src[i] + paeth(left, up, upLeft)
			default:
				dst[i] = src[i]
			}
		}
		copy(prev, dst)
	}
	return out
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := iabs(p-int(a)), iabs(p-int(b)), iabs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func iabs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
