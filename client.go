// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/cnotch/av1parser/av/codec/av1"
	"github.com/cnotch/av1parser/decoder"
	"github.com/cnotch/xlog"
)

// picture 只记录分配序号，不保存像素
type picture struct {
	n int
}

// logClient 不做实际解码，把每个回调记录到日志
type logClient struct {
	logger *xlog.Logger
	allocs int
}

var _ decoder.Client = (*logClient)(nil)

func newLogClient(logger *xlog.Logger) *logClient {
	return &logClient{logger: logger}
}

func (c *logClient) BeginSequence(info *decoder.SequenceInfo) int {
	c.logger.Infof("sequence %s %dx%d (max %dx%d), %d bit, chroma %d, %.3f fps, film grain %t",
		info.Codec, info.DisplayWidth, info.DisplayHeight, info.MaxWidth, info.MaxHeight,
		info.BitDepthLumaMinus8+8, info.ChromaFormat, info.FrameRate, info.HasFilmGrain)
	return info.MinNumDecodeSurfaces
}

func (c *logClient) AllocPictureBuffer() (decoder.PictureBuffer, error) {
	c.allocs++
	return &picture{n: c.allocs}, nil
}

func (c *logClient) DecodePicture(pd *decoder.PictureData) bool {
	if c.logger.LevelEnabled(xlog.DebugLevel) {
		fh := pd.Header
		c.logger.Debugf("decode picture %d: %s %dx%d hint %d q %d, %d tiles in %d bytes, refs %v",
			pd.PicIdx, fh.FrameType, fh.Size.UpscaledWidth, fh.Size.FrameHeight,
			fh.OrderHint, fh.Quantization.BaseQIdx, pd.NumTiles, len(pd.Bitstream), pd.RefPicIdx)
	}
	return true
}

func (c *logClient) DisplayPicture(di *decoder.DisplayInfo) bool {
	if c.logger.LevelEnabled(xlog.DebugLevel) {
		c.logger.Debugf("display picture %d (buffer %d) pts %d valid %t",
			di.PicIdx, di.Buffer.(*picture).n, di.PTS, di.PTSValid)
	}
	return true
}

func (c *logClient) UpdatePictureParameters(sh *av1.SequenceHeader) (interface{}, error) {
	c.logger.Infof("sequence header: profile %d, %d operating points, max %dx%d",
		sh.SeqProfile, sh.OperatingPointsCnt, sh.MaxFrameWidth, sh.MaxFrameHeight)
	return nil, nil
}
