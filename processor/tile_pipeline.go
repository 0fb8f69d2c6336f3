package processor

import (
	"context"

	"github.com/gimi-testbed/gimi-ows/utils"
)

type TilePipeline struct {
	Context            context.Context
	Error              chan error
	RPCAddress         []string
	MaxGrpcRecvMsgSize int
	MASAddress         string
}

func InitTilePipeline(ctx context.Context, masAddr string, rpcAddr []string, maxGrpcRecvMsgSize int, errChan chan error) *TilePipeline {
	return &TilePipeline{
		Context:            ctx,
		Error:              errChan,
		RPCAddress:         rpcAddr,
		MaxGrpcRecvMsgSize: maxGrpcRecvMsgSize,
		MASAddress:         masAddr,
	}
}

func (dp *TilePipeline) Process(geoReq *GeoTileRequest, verbose bool) chan []utils.Raster {
	grpcTiler := NewRasterGRPC(dp.Context, dp.RPCAddress, dp.MaxGrpcRecvMsgSize, dp.Error)

	i := NewTileIndexer(dp.Context, dp.MASAddress, dp.Error)
	go func() {
		i.In <- geoReq
		close(i.In)
	}()

	m := NewRasterMerger(dp.Error)

	grpcTiler.In = i.Out
	m.In = grpcTiler.Out

	var varList []string
	if geoReq.BandExpr != nil {
		varList = geoReq.BandExpr.VarList
	}

	go i.Run(verbose)
	go grpcTiler.Run(varList, verbose)
	go m.Run(geoReq.BandExpr, verbose)

	return m.Out
}
