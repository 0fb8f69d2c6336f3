package processor

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"runtime"

	"github.com/nci/go.procmeminfo"

	pb "github.com/gimi-testbed/gimi-ows/worker/decodeservice"
	"golang.org/x/net/context"
	"google.golang.org/grpc"
)

const ReservedMemorySize = 1.5 * 1024 * 1024 * 1024

type GeoRasterGRPC struct {
	Context            context.Context
	In                 chan *GeoTileGranule
	Out                chan *FlexRaster
	Error              chan error
	Clients            []string
	MaxGrpcRecvMsgSize int
}

func NewRasterGRPC(ctx context.Context, serverAddress []string, maxGrpcRecvMsgSize int, errChan chan error) *GeoRasterGRPC {
	return &GeoRasterGRPC{
		Context:            ctx,
		In:                 make(chan *GeoTileGranule, 100),
		Out:                make(chan *FlexRaster, 100),
		Error:              errChan,
		Clients:            serverAddress,
		MaxGrpcRecvMsgSize: maxGrpcRecvMsgSize,
	}
}

func (gi *GeoRasterGRPC) Run(varList []string, verbose bool) {
	if verbose {
		defer log.Printf("tile grpc done")
	}
	defer close(gi.Out)

	var grans []*GeoTileGranule
	availNamespaces := make(map[string]bool)
	imageSize := 0
	for gran := range gi.In {
		if gran.Path == "NULL" {
			gi.Out <- &FlexRaster{ConfigPayLoad: gran.ConfigPayLoad, Data: make([]uint8, gran.Width*gran.Height), Height: gran.Height, Width: gran.Width, Type: gran.RasterType, NoData: 0.0, NameSpace: gran.NameSpace, TimeStamp: gran.TimeStamp}
			continue
		}

		grans = append(grans, gran)
		if imageSize == 0 {
			imageSize = gran.Height * gran.Width
		}
		availNamespaces[gran.NameSpace] = true
	}

	if len(grans) == 0 {
		return
	}

	for _, v := range varList {
		if _, found := availNamespaces[v]; !found {
			gi.sendError(fmt.Errorf("band '%v' not found", v))
			return
		}
	}

	g0 := grans[0]
	concLimit := g0.GrpcConcLimit
	if concLimit < 1 {
		concLimit = 1
	}
	effectivePoolSize := int(math.Ceil(float64(len(grans)) / float64(concLimit)))
	if effectivePoolSize < 1 {
		effectivePoolSize = 1
	} else if effectivePoolSize > len(gi.Clients) {
		effectivePoolSize = len(gi.Clients)
	}

	opts := []grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(gi.MaxGrpcRecvMsgSize)),
	}

	clientIdx := make([]int, len(gi.Clients))
	for ic := range clientIdx {
		clientIdx[ic] = ic
	}
	rand.Shuffle(len(clientIdx), func(i, j int) { clientIdx[i], clientIdx[j] = clientIdx[j], clientIdx[i] })

	var connPool []*grpc.ClientConn
	for i := 0; i < effectivePoolSize; i++ {
		conn, err := grpc.Dial(gi.Clients[clientIdx[i]], opts...)
		if err != nil {
			log.Printf("gRPC connection problem: %v", err)
			continue
		}
		defer conn.Close()

		connPool = append(connPool, conn)
	}

	if len(connPool) == 0 {
		gi.Error <- fmt.Errorf("All gRPC servers offline")
		return
	}

	dataSize, err := getDataSize(g0.RasterType)
	if err != nil {
		gi.Error <- err
		return
	}

	meminfo := procmeminfo.MemInfo{}
	err = meminfo.Update()
	if err == nil {
		requestedSize := imageSize * dataSize * len(grans)

		freeMem := int(meminfo.Available())
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		availableMem := freeMem + int(mem.HeapIdle)

		if availableMem-requestedSize <= ReservedMemorySize {
			log.Printf("Out of memory, freeMem:%v, requested:%v", freeMem, requestedSize)
			gi.sendError(fmt.Errorf("Server resources exhausted"))
			return
		}
	} else {
		// assume enough memory on systems without /proc/meminfo
		log.Printf("meminfo error: %v", err)
	}

	cLimiter := NewConcLimiter(concLimit * len(connPool))
	for iGran := range grans {
		gran := grans[iGran]
		select {
		case <-gi.Context.Done():
			return
		default:
			cLimiter.Increase()
			go func(g *GeoTileGranule, gCnt int) {
				defer cLimiter.Decrease()
				r, err := getRPCRaster(gi.Context, g, connPool[gCnt%len(connPool)])
				if err != nil {
					gi.sendError(err)
					r = &pb.Result{Raster: &pb.Raster{Data: make([]uint8, g.Width*g.Height), RasterType: "Byte", NoData: -1.}}
				}
				gi.Out <- &FlexRaster{ConfigPayLoad: g.ConfigPayLoad, Data: r.Raster.Data, Height: g.Height, Width: g.Width, Type: r.Raster.RasterType, NoData: r.Raster.NoData, NameSpace: g.NameSpace, TimeStamp: g.TimeStamp}
			}(gran, iGran)
		}
	}
	cLimiter.Wait()
}

func (gi *GeoRasterGRPC) sendError(err error) {
	select {
	case gi.Error <- err:
	default:
	}
}

func getDataSize(dataType string) (int, error) {
	switch dataType {
	case "Byte":
		return 1, nil
	case "Int16":
		return 2, nil
	case "UInt16":
		return 2, nil
	case "Float32":
		return 4, nil
	default:
		return -1, fmt.Errorf("Unsupported raster type %s", dataType)
	}
}

func getRPCRaster(ctx context.Context, g *GeoTileGranule, conn *grpc.ClientConn) (*pb.Result, error) {
	c := pb.NewDecodeClient(conn)
	granule := &pb.GeoDecodeGranule{
		Path:        g.Path,
		ItemId:      g.ItemID,
		Codec:       g.Codec,
		CodecConfig: g.CodecConfig,
		Extents:     g.Extents,
		Geot:        g.Geot,
		OutGeot:     BBox2Geot(g.Width, g.Height, g.BBox),
		Width:       int32(g.Width),
		Height:      int32(g.Height),
		Bands:       []int32{g.Band},
		NoData:      g.NoData,
	}
	r, err := c.Process(ctx, granule)
	if err != nil {
		return nil, err
	}

	return r, nil
}
