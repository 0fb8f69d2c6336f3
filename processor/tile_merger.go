package processor

import (
	"fmt"
	"log"
	"math"
	"reflect"
	"sort"
	"time"
	"unsafe"

	"github.com/gimi-testbed/gimi-ows/utils"
)

const SizeofUint16 = 2
const SizeofInt16 = 2
const SizeofFloat32 = 4

// ExprNoData marks pixels a band expression could not be evaluated on.
const ExprNoData = -9999.0

type RasterMerger struct {
	In    chan *FlexRaster
	Out   chan []utils.Raster
	Error chan error
}

func NewRasterMerger(errChan chan error) *RasterMerger {
	return &RasterMerger{
		In:    make(chan *FlexRaster, 100),
		Out:   make(chan []utils.Raster, 100),
		Error: errChan,
	}
}

// MergeRaster paints r onto the namespace canvas. Pixels from later
// acquisitions overwrite earlier ones, earlier acquisitions only fill
// pixels the canvas has no data for yet.
func MergeRaster(r *FlexRaster, canvasMap map[string]*FlexRaster) (err error) {
	switch r.Type {
	case "Byte":
		canvas := canvasMap[r.NameSpace].Data
		data := r.Data
		nodata := uint8(r.NoData)

		if r.TimeStamp.Before(canvasMap[r.NameSpace].TimeStamp) {
			canvasNodata := uint8(canvasMap[r.NameSpace].NoData)
			for i, val := range data {
				if val != nodata && canvas[i] == canvasNodata {
					canvas[i] = val
				}
			}
		} else {
			for i, val := range data {
				if val != nodata {
					canvas[i] = val
				}
			}
			canvasMap[r.NameSpace].TimeStamp = r.TimeStamp
		}
	case "Int16":
		headr := *(*reflect.SliceHeader)(unsafe.Pointer(&canvasMap[r.NameSpace].Data))
		headr.Len /= SizeofInt16
		headr.Cap /= SizeofInt16
		canvas := *(*[]int16)(unsafe.Pointer(&headr))

		header := *(*reflect.SliceHeader)(unsafe.Pointer(&r.Data))
		header.Len /= SizeofInt16
		header.Cap /= SizeofInt16
		data := *(*[]int16)(unsafe.Pointer(&header))
		nodata := int16(r.NoData)

		if r.TimeStamp.Before(canvasMap[r.NameSpace].TimeStamp) {
			canvasNodata := int16(canvasMap[r.NameSpace].NoData)
			for i, val := range data {
				if val != nodata && canvas[i] == canvasNodata {
					canvas[i] = val
				}
			}
		} else {
			for i, val := range data {
				if val != nodata {
					canvas[i] = val
				}
			}
			canvasMap[r.NameSpace].TimeStamp = r.TimeStamp
		}
	case "UInt16":
		headr := *(*reflect.SliceHeader)(unsafe.Pointer(&canvasMap[r.NameSpace].Data))
		headr.Len /= SizeofUint16
		headr.Cap /= SizeofUint16
		canvas := *(*[]uint16)(unsafe.Pointer(&headr))

		header := *(*reflect.SliceHeader)(unsafe.Pointer(&r.Data))
		header.Len /= SizeofUint16
		header.Cap /= SizeofUint16
		data := *(*[]uint16)(unsafe.Pointer(&header))
		nodata := uint16(r.NoData)

		if r.TimeStamp.Before(canvasMap[r.NameSpace].TimeStamp) {
			canvasNodata := uint16(canvasMap[r.NameSpace].NoData)
			for i, val := range data {
				if val != nodata && canvas[i] == canvasNodata {
					canvas[i] = val
				}
			}
		} else {
			for i, val := range data {
				if val != nodata {
					canvas[i] = val
				}
			}
			canvasMap[r.NameSpace].TimeStamp = r.TimeStamp
		}
	case "Float32":
		headr := *(*reflect.SliceHeader)(unsafe.Pointer(&canvasMap[r.NameSpace].Data))
		headr.Len /= SizeofFloat32
		headr.Cap /= SizeofFloat32
		canvas := *(*[]float32)(unsafe.Pointer(&headr))

		header := *(*reflect.SliceHeader)(unsafe.Pointer(&r.Data))
		header.Len /= SizeofFloat32
		header.Cap /= SizeofFloat32
		data := *(*[]float32)(unsafe.Pointer(&header))
		nodata := float32(r.NoData)

		if r.TimeStamp.Before(canvasMap[r.NameSpace].TimeStamp) {
			canvasNodata := float32(canvasMap[r.NameSpace].NoData)
			for i, val := range data {
				if val != nodata && canvas[i] == canvasNodata {
					canvas[i] = val
				}
			}
		} else {
			for i, val := range data {
				if val != nodata {
					canvas[i] = val
				}
			}
			canvasMap[r.NameSpace].TimeStamp = r.TimeStamp
		}
	default:
		err = fmt.Errorf("MergeRaster hasn't been implemented for raster type %s", r.Type)
	}
	return
}

func initNoDataSlice(rType string, noDataValue float64, size int) []uint8 {
	switch rType {
	case "Byte":
		out := make([]uint8, size)
		fill := uint8(noDataValue)
		for i := 0; i < size; i++ {
			out[i] = fill
		}
		return out
	case "Int16":
		out := make([]int16, size)
		fill := int16(noDataValue)
		for i := 0; i < size; i++ {
			out[i] = fill
		}
		headr := *(*reflect.SliceHeader)(unsafe.Pointer(&out))
		headr.Len *= SizeofInt16
		headr.Cap *= SizeofInt16
		return *(*[]uint8)(unsafe.Pointer(&headr))
	case "UInt16":
		out := make([]uint16, size)
		fill := uint16(noDataValue)
		for i := 0; i < size; i++ {
			out[i] = fill
		}
		headr := *(*reflect.SliceHeader)(unsafe.Pointer(&out))
		headr.Len *= SizeofUint16
		headr.Cap *= SizeofUint16
		return *(*[]uint8)(unsafe.Pointer(&headr))
	case "Float32":
		out := make([]float32, size)
		fill := float32(noDataValue)
		for i := 0; i < size; i++ {
			out[i] = fill
		}
		headr := *(*reflect.SliceHeader)(unsafe.Pointer(&out))
		headr.Len *= SizeofFloat32
		headr.Cap *= SizeofFloat32
		return *(*[]uint8)(unsafe.Pointer(&headr))
	default:
		return []uint8{}
	}
}

func ProcessRasterStack(rasterStack map[int64][]*FlexRaster) (canvasMap map[string]*FlexRaster, err error) {
	canvasMap = map[string]*FlexRaster{}

	var keys []int64
	for k := range rasterStack {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

	for _, geoStamp := range keys {
		for _, r := range rasterStack[geoStamp] {
			if _, ok := canvasMap[r.NameSpace]; !ok {
				canvasMap[r.NameSpace] = &FlexRaster{TimeStamp: time.Time{}, ConfigPayLoad: r.ConfigPayLoad,
					NoData: r.NoData, Data: initNoDataSlice(r.Type, r.NoData, r.Width*r.Height),
					Height: r.Height, Width: r.Width,
					Type: r.Type, NameSpace: r.NameSpace}
			}
			err = MergeRaster(r, canvasMap)
			if err != nil {
				return
			}
		}
		delete(rasterStack, geoStamp)
	}
	return
}

// canvasFloat64 exposes a canvas as float64 samples with a validity
// mask for expression evaluation.
func canvasFloat64(r *FlexRaster) ([]float64, []bool, error) {
	size := r.Width * r.Height
	values := make([]float64, size)
	valid := make([]bool, size)

	header := *(*reflect.SliceHeader)(unsafe.Pointer(&r.Data))
	switch r.Type {
	case "Byte":
		nodata := uint8(r.NoData)
		for i, val := range r.Data[:size] {
			values[i] = float64(val)
			valid[i] = val != nodata
		}
	case "Int16":
		header.Len /= SizeofInt16
		header.Cap /= SizeofInt16
		data := *(*[]int16)(unsafe.Pointer(&header))
		nodata := int16(r.NoData)
		for i, val := range data[:size] {
			values[i] = float64(val)
			valid[i] = val != nodata
		}
	case "UInt16":
		header.Len /= SizeofUint16
		header.Cap /= SizeofUint16
		data := *(*[]uint16)(unsafe.Pointer(&header))
		nodata := uint16(r.NoData)
		for i, val := range data[:size] {
			values[i] = float64(val)
			valid[i] = val != nodata
		}
	case "Float32":
		header.Len /= SizeofFloat32
		header.Cap /= SizeofFloat32
		data := *(*[]float32)(unsafe.Pointer(&header))
		nodata := float32(r.NoData)
		for i, val := range data[:size] {
			values[i] = float64(val)
			valid[i] = val != nodata
		}
	default:
		return nil, nil, fmt.Errorf("expressions are not supported for raster type %s", r.Type)
	}
	return values, valid, nil
}

// EvalExpressions computes the style band expressions over the merged
// canvases. Plain band references keep their native raster type,
// computed bands come out as Float32.
func EvalExpressions(canvasMap map[string]*FlexRaster, bandExpr *utils.BandExpressions) (map[string]*FlexRaster, error) {
	values := map[string][]float64{}
	valid := map[string][]bool{}
	for _, varName := range bandExpr.VarList {
		canvas, ok := canvasMap[varName]
		if !ok {
			return nil, fmt.Errorf("band '%v' not found", varName)
		}
		v, m, err := canvasFloat64(canvas)
		if err != nil {
			return nil, err
		}
		values[varName] = v
		valid[varName] = m
	}

	outMap := map[string]*FlexRaster{}
	for ix, expr := range bandExpr.Expressions {
		name := bandExpr.ExprNames[ix]
		varRef := bandExpr.ExprVarRef[ix]

		if len(varRef) == 1 && varRef[0] == bandExpr.ExprText[ix] {
			outMap[name] = canvasMap[varRef[0]]
			outMap[name].NameSpace = name
			continue
		}

		refCanvas := canvasMap[varRef[0]]
		size := refCanvas.Width * refCanvas.Height
		data := make([]float32, size)

		parameters := make(map[string]interface{}, len(varRef))
		for i := 0; i < size; i++ {
			hasData := true
			for _, varName := range varRef {
				if !valid[varName][i] {
					hasData = false
					break
				}
			}
			if !hasData {
				data[i] = ExprNoData
				continue
			}

			for _, varName := range varRef {
				parameters[varName] = values[varName][i]
			}
			result, err := expr.Evaluate(parameters)
			if err != nil {
				return nil, fmt.Errorf("eval '%v' error: %v", bandExpr.ExprText[ix], err)
			}

			switch val := result.(type) {
			case float32:
				data[i] = val
			case float64:
				data[i] = float32(val)
			case bool:
				if val {
					data[i] = 1
				}
			default:
				return nil, fmt.Errorf("eval '%v' returned non numeric result", bandExpr.ExprText[ix])
			}
			if math.IsNaN(float64(data[i])) || math.IsInf(float64(data[i]), 0) {
				data[i] = ExprNoData
			}
		}

		dataBytesHdr := *(*reflect.SliceHeader)(unsafe.Pointer(&data))
		dataBytesHdr.Len *= SizeofFloat32
		dataBytesHdr.Cap *= SizeofFloat32
		dataBytes := *(*[]uint8)(unsafe.Pointer(&dataBytesHdr))

		outMap[name] = &FlexRaster{ConfigPayLoad: refCanvas.ConfigPayLoad, NoData: ExprNoData,
			Data: dataBytes, Type: "Float32",
			Height: refCanvas.Height, Width: refCanvas.Width, NameSpace: name}
	}

	return outMap, nil
}

func (enc *RasterMerger) Run(bandExpr *utils.BandExpressions, verbose bool) {
	if verbose {
		defer log.Printf("tile merger done")
	}
	defer close(enc.Out)

	rasterStack := map[int64][]*FlexRaster{}
	for r := range enc.In {
		geoStamp := r.TimeStamp.UnixNano()
		rasterStack[geoStamp] = append(rasterStack[geoStamp], r)
	}

	canvasMap, err := ProcessRasterStack(rasterStack)
	if err != nil {
		enc.Error <- err
		return
	}

	_, hasEmptyTile := canvasMap[utils.EmptyTileNS]
	_, hasOutOfZoom := canvasMap["OutOfZoom"]

	if bandExpr != nil && len(bandExpr.Expressions) > 0 && !hasEmptyTile && !hasOutOfZoom {
		outMap, err := EvalExpressions(canvasMap, bandExpr)
		if err != nil {
			enc.Error <- err
			return
		}
		canvasMap = outMap

		nameSpaces := bandExpr.ExprNames
		enc.Out <- canvasToRasters(canvasMap, nameSpaces, enc.Error)
		return
	}

	var nameSpaces []string
	for _, canvas := range canvasMap {
		nameSpaces = canvas.ConfigPayLoad.NameSpaces
		break
	}

	// requests with no band selection and no style carry no namespaces,
	// serve every band the granules produced
	if len(nameSpaces) == 0 {
		for ns := range canvasMap {
			nameSpaces = append(nameSpaces, ns)
		}
		sort.Strings(nameSpaces)
	}

	if len(nameSpaces) == 0 {
		enc.Out <- []utils.Raster{&utils.ByteRaster{Data: make([]uint8, 0), Height: 0, Width: 0}}
		return
	}

	enc.Out <- canvasToRasters(canvasMap, nameSpaces, enc.Error)
}

func canvasToRasters(canvasMap map[string]*FlexRaster, nameSpaces []string, errChan chan error) []utils.Raster {
	out := make([]utils.Raster, 0, len(nameSpaces))
	for _, ns := range nameSpaces {
		canvas, ok := canvasMap[ns]
		if !ok {
			errChan <- fmt.Errorf("band '%v' not found", ns)
			continue
		}
		headr := *(*reflect.SliceHeader)(unsafe.Pointer(&canvas.Data))
		switch canvas.Type {
		case "Byte":
			out = append(out, &utils.ByteRaster{NoData: canvas.NoData, Data: canvas.Data,
				Width: canvas.Width, Height: canvas.Height, NameSpace: canvas.NameSpace})

		case "UInt16":
			headr.Len /= SizeofUint16
			headr.Cap /= SizeofUint16
			data := *(*[]uint16)(unsafe.Pointer(&headr))
			out = append(out, &utils.UInt16Raster{NoData: canvas.NoData, Data: data,
				Width: canvas.Width, Height: canvas.Height, NameSpace: canvas.NameSpace})

		case "Int16":
			headr.Len /= SizeofInt16
			headr.Cap /= SizeofInt16
			data := *(*[]int16)(unsafe.Pointer(&headr))
			out = append(out, &utils.Int16Raster{NoData: canvas.NoData, Data: data,
				Width: canvas.Width, Height: canvas.Height, NameSpace: canvas.NameSpace})

		case "Float32":
			headr.Len /= SizeofFloat32
			headr.Cap /= SizeofFloat32
			data := *(*[]float32)(unsafe.Pointer(&headr))
			out = append(out, &utils.Float32Raster{NoData: canvas.NoData, Data: data,
				Width: canvas.Width, Height: canvas.Height, NameSpace: canvas.NameSpace})

		default:
			errChan <- fmt.Errorf("raster type %s not recognised", canvas.Type)
		}
	}
	return out
}
