package processor

import (
	"context"
	"fmt"

	"github.com/gimi-testbed/gimi-ows/utils"
)

// CoveragePipeline serves coverage subsets. It shares the tile stages
// but returns the native typed rasters synchronously so the handler can
// encode them as GeoTIFF or CoverageJSON.
type CoveragePipeline struct {
	TilePipeline
}

func InitCoveragePipeline(ctx context.Context, masAddr string, rpcAddr []string, maxGrpcRecvMsgSize int, errChan chan error) *CoveragePipeline {
	return &CoveragePipeline{
		TilePipeline{
			Context:            ctx,
			Error:              errChan,
			RPCAddress:         rpcAddr,
			MaxGrpcRecvMsgSize: maxGrpcRecvMsgSize,
			MASAddress:         masAddr,
		},
	}
}

func (dp *CoveragePipeline) GetRasters(geoReq *GeoTileRequest, verbose bool) ([]utils.Raster, error) {
	// coverages are never zoom limited
	geoReq.ZoomLimit = 0

	out := dp.Process(geoReq, verbose)

	for {
		select {
		case res, ok := <-out:
			if !ok {
				return nil, fmt.Errorf("no rasters produced for %v", geoReq.Collection)
			}
			return res, nil
		case err := <-dp.Error:
			return nil, err
		case <-dp.Context.Done():
			return nil, fmt.Errorf("coverage pipeline: context has been cancelled: %v", dp.Context.Err())
		}
	}
}
