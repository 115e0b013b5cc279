// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"errors"
	"fmt"

	"github.com/cnotch/av1parser/av/codec/av1"
	"github.com/cnotch/av1parser/stats"
	"github.com/cnotch/av1parser/utils/bits"
	"github.com/cnotch/xlog"
)

// 错误定义
var (
	// ErrBeginSequence 客户端拒绝了新的序列
	ErrBeginSequence = errors.New("decoder: client rejected sequence")
	// ErrNoSequence 在序列头之前收到帧
	ErrNoSequence = errors.New("decoder: no sequence header")
)

// obuHandler 单个 OBU 类型的处理函数，unit 是完整的 OBU 数据
type obuHandler func(d *Decoder, o *av1.OBU, unit []byte) error

var obuHandlers [16]obuHandler

func init() {
	obuHandlers[av1.OBUTemporalDelimiter] = (*Decoder).onTemporalDelimiter
	obuHandlers[av1.OBUSequenceHeader] = (*Decoder).onSequenceHeader
	obuHandlers[av1.OBUFrameHeader] = (*Decoder).onFrameHeader
	obuHandlers[av1.OBURedundantFrameHeader] = (*Decoder).onFrameHeader
	obuHandlers[av1.OBUFrame] = (*Decoder).onFrame
	obuHandlers[av1.OBUTileGroup] = (*Decoder).onTileGroup
	obuHandlers[av1.OBUMetadata] = (*Decoder).onIgnored
	obuHandlers[av1.OBUTileList] = (*Decoder).onIgnored
	obuHandlers[av1.OBUPadding] = (*Decoder).onIgnored
}

// Decoder AV1 码流解析器。
// 它把码流切分为帧，交给 Client 解码，并管理参考帧和输出顺序。
// Decoder 不是并发安全的，一个码流使用一个实例。
type Decoder struct {
	client          Client
	logger          *xlog.Logger
	stats           *stats.DecodeStats
	annexB          bool
	policy          av1.Policy
	operatingPoint  int
	outputAllLayers bool

	checker    av1.Checker
	seqParser  av1.SequenceParser
	sh         *av1.SequenceHeader // 当前序列头
	token      interface{}         // UpdatePictureParameters 返回的客户端数据
	opIdc      uint16
	spsChanged bool
	seqInfo    SequenceInfo
	surfaces   int // BeginSequence 返回值，0 表示还未开始序列

	refs            av1.RefState
	fh              av1.FrameHeader
	tg              av1.TileGroup
	tiles           av1.TileList
	seenFrameHeader bool
	dropping        bool  // 当前帧已出错，忽略其剩余的 tile group
	frameNum        int   // 已处理的帧数，出错的帧也计数
	frameStart      int64 // 当前帧在码流中的起始位置
	frameData       []byte
	pd              PictureData

	pool          *PicturePool
	dpb           *dpb
	output        outputQueue
	pts           ptsQueue
	bs            bitstream
	discontinuity bool
}

// New 创建解析器
func New(client Client, options ...Option) *Decoder {
	d := &Decoder{
		client: client,
		logger: xlog.L().With(xlog.Fields(xlog.F("codec", "av1"))),
		stats:  stats.NewDecodeStats(stats.Total),
	}

	for _, option := range options {
		option.apply(d)
	}

	var release func(PictureBuffer)
	if r, ok := client.(BufferReleaser); ok {
		release = r.ReleasePictureBuffer
	}
	d.pool = NewPicturePool(client.AllocPictureBuffer, release)
	d.dpb = newDPB(d.pool)
	d.output = outputQueue{pool: d.pool, allLayers: d.outputAllLayers}
	d.checker = av1.Checker{Policy: d.policy, Logger: d.logger}
	return d
}

// Pool 图像缓冲池
func (d *Decoder) Pool() *PicturePool { return d.pool }

// Stats 解码统计
func (d *Decoder) Stats() *stats.DecodeStats { return d.stats }

// Sequence 当前序列头，收到序列头前为 nil
func (d *Decoder) Sequence() *av1.SequenceHeader { return d.sh }

// ClientToken 当前序列的客户端数据
func (d *Decoder) ClientToken() interface{} { return d.token }

// ParseByteStream 解析一个码流包。
// 包内的数据全部被接收，不完整的 OBU 留待下一个包。
// 帧级错误只记录日志并丢弃该帧，返回的错误表示无法继续的错误。
func (d *Decoder) ParseByteStream(pkt *Packet) (consumed int, err error) {
	if pkt.Discontinuity {
		d.bs.discard()
		d.pts.reset()
		d.abandonFrame()
		d.discontinuity = true
	}

	if pkt.PTSValid {
		d.pts.push(pkt.PTS, d.bs.end(), d.discontinuity)
		d.discontinuity = false
	}

	d.bs.append(pkt.Data)
	consumed = len(pkt.Data)

	err = d.parseBuffered(pkt.Complete || pkt.EOS)

	// 输出本包内完成的帧
	d.drainOutput()

	if pkt.EOS {
		d.EndOfStream()
	}
	return
}

// WritePacket 同 ParseByteStream，供解封装器直接写入
func (d *Decoder) WritePacket(pkt *Packet) error {
	_, err := d.ParseByteStream(pkt)
	return err
}

// parseBuffered 解析缓冲中所有完整的 OBU
func (d *Decoder) parseBuffered(final bool) error {
	for {
		d.bs.skipZeros()
		data := d.bs.bytes()
		if len(data) == 0 {
			return nil
		}

		o, err := av1.ReadOBU(data, d.annexB)
		if err != nil {
			if errors.Is(err, av1.ErrTruncated) && !final {
				return nil // 等待后续数据
			}
			// 无法定位下一个 OBU，丢弃剩余数据
			d.frameError(err)
			d.bs.discard()
			return nil
		}

		at := d.bs.pos
		unit := data[:o.Size]
		d.stats.AddOBU(o.Size)
		err = d.handleOBU(&o, unit, at)
		d.bs.consume(o.Size)
		if err != nil {
			return err
		}
	}
}

func (d *Decoder) handleOBU(o *av1.OBU, unit []byte, at int64) error {
	h := &o.Header
	if !h.InOperatingPoint(d.opIdc) {
		d.logger.Debugf("skip obu type %d temporal %d spatial %d", h.Type, h.TemporalID, h.SpatialID)
		return nil
	}

	handler := obuHandlers[h.Type]
	if handler == nil {
		return nil
	}

	if h.Type == av1.OBUFrameHeader || h.Type == av1.OBUFrame || h.Type == av1.OBURedundantFrameHeader {
		if !d.seenFrameHeader {
			d.frameStart = at
		}
	}

	err := handler(d, o, unit)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOutputOverflow) {
		d.abandonFrame()
		return err
	}
	d.frameError(err)
	return nil
}

// frameError 记录错误并丢弃当前帧
func (d *Decoder) frameError(err error) {
	d.logger.Errorf("decode error on frame %d: %v", d.frameNum, err)
	d.stats.AddError()
	d.stats.AddDropped()
	d.frameNum++
	d.abandonFrame()
	d.dropping = true
}

func (d *Decoder) abandonFrame() {
	d.seenFrameHeader = false
	d.dropping = false
	d.tiles.Reset()
}

func (d *Decoder) onIgnored(o *av1.OBU, unit []byte) error {
	d.logger.Debugf("ignore obu type %d, %d bytes", o.Header.Type, o.PayloadSize)
	return nil
}

func (d *Decoder) onTemporalDelimiter(o *av1.OBU, unit []byte) error {
	// 上一个时域单元结束
	d.drainOutput()

	if d.seenFrameHeader {
		d.abandonFrame()
		return fmt.Errorf("%w: frame not complete at temporal delimiter", av1.ErrTruncated)
	}
	d.abandonFrame()
	return nil
}

func (d *Decoder) onSequenceHeader(o *av1.OBU, unit []byte) error {
	sh, changed, err := d.seqParser.Parse(o.Payload(unit))
	if err != nil {
		// 不属于任何帧
		d.logger.Errorf("sequence header error: %v", err)
		d.stats.AddError()
		return nil
	}
	d.sh = sh
	if !changed {
		// 同一序列的重复序列头，只更新 operating point
		d.selectOperatingPoint(sh)
		return nil
	}

	d.spsChanged = true
	d.stats.AddSequence()
	d.logger.Infof("sequence %d: profile %d, %dx%d, %d bit, order hint bits %d",
		sh.SeqID, sh.SeqProfile, sh.MaxFrameWidth, sh.MaxFrameHeight,
		sh.ColorConfig.BitDepth, sh.OrderHintBits)

	token, err := d.client.UpdatePictureParameters(sh)
	if err != nil {
		d.logger.Errorf("update picture parameters: %v", err)
	}
	d.token = token

	d.selectOperatingPoint(sh)
	return nil
}

func (d *Decoder) selectOperatingPoint(sh *av1.SequenceHeader) {
	op, all := d.operatingPoint, d.outputAllLayers
	if sel, ok := d.client.(OperatingPointSelector); ok && sh.OperatingPointsCnt > 1 {
		op, all = sel.SelectOperatingPoint(sh)
	}
	if op < 0 || op >= sh.OperatingPointsCnt {
		if sh.OperatingPointsCnt > 1 {
			d.logger.Warnf("operating point %d out of range, use 0", op)
		}
		op = 0
	}

	d.opIdc = sh.OperatingPoints[op].Idc
	d.output.allLayers = all
}

func (d *Decoder) onFrameHeader(o *av1.OBU, unit []byte) error {
	if d.seenFrameHeader {
		// frame_header_copy()
		return nil
	}
	return d.decodeFrameHeader(o, unit, false)
}

func (d *Decoder) onFrame(o *av1.OBU, unit []byte) error {
	if d.seenFrameHeader {
		d.frameError(fmt.Errorf("%w: frame obu before the previous frame completed", av1.ErrCorrupt))
		d.frameStart = d.bs.pos
	}
	return d.decodeFrameHeader(o, unit, true)
}

func (d *Decoder) onTileGroup(o *av1.OBU, unit []byte) error {
	if d.dropping {
		return nil
	}
	if !d.seenFrameHeader {
		return fmt.Errorf("%w: tile group without frame header", av1.ErrCorrupt)
	}

	base := len(d.frameData)
	d.frameData = growBuffer(d.frameData, len(unit))
	d.frameData = append(d.frameData, unit...)
	return d.decodeTileGroup(o.Payload(unit), false, uint32(base+o.HeaderSize))
}

func (d *Decoder) decodeFrameHeader(o *av1.OBU, unit []byte, isFrame bool) error {
	d.dropping = false
	d.tiles.Reset()
	if d.sh == nil {
		return ErrNoSequence
	}

	d.frameData = growBuffer(d.frameData[:0], len(unit))
	d.frameData = append(d.frameData, unit...)

	payload := o.Payload(unit)
	r := bits.NewReader(payload)
	ctx := av1.FrameContext{
		Sequence:   d.sh,
		Refs:       &d.refs,
		TemporalID: o.Header.TemporalID,
		SpatialID:  o.Header.SpatialID,
		Checker:    &d.checker,
	}
	if err := d.fh.Decode(r, &ctx); err != nil {
		return err
	}

	if d.fh.ShowExistingFrame {
		return d.showExistingFrame()
	}
	d.seenFrameHeader = true
	if !isFrame {
		return nil
	}

	r.ByteAlign()
	pos := r.Offset() >> 3
	if pos > len(payload) {
		return fmt.Errorf("frame: %w", av1.ErrTruncated)
	}
	return d.decodeTileGroup(payload[pos:], true, uint32(o.HeaderSize+pos))
}

func (d *Decoder) decodeTileGroup(data []byte, isFrame bool, base uint32) error {
	last, err := d.tg.Decode(data, &d.fh.TileInfo, isFrame, base, &d.tiles)
	if err != nil {
		return err
	}
	if !last {
		return nil
	}

	d.seenFrameHeader = false
	return d.endPicture()
}

// drainOutput 输出队列中所有图像
func (d *Decoder) drainOutput() {
	d.output.drain(func(e *outputEntry) {
		d.stats.AddShown()
		d.client.DisplayPicture(&DisplayInfo{
			PicIdx:        e.id,
			Buffer:        d.pool.Buffer(e.id),
			PTS:           e.pts.pts,
			PTSValid:      e.pts.valid,
			Discontinuity: e.pts.discontinuity,
			Evict:         !e.showable,
		})
	})
}

// EndOfStream 输出等待的图像，然后释放所有缓冲引用
func (d *Decoder) EndOfStream() {
	d.drainOutput()
	d.output.reset()
	d.dpb.flush()
	d.refs.Reset()
	d.abandonFrame()
	d.bs.discard()
	d.pts.reset()
	d.discontinuity = false
}
