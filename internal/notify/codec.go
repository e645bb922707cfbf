package notify

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// frameType tags report frames so WebSocket clients can multiplex them with
// other messages.
const frameType = "income_report"

// EncodeReportFrame serialises d as a protobuf Struct. This is the binary
// frame pushed over pub/sub and forwarded to WebSocket clients.
func EncodeReportFrame(d Delivery) ([]byte, error) {
	st, err := structpb.NewStruct(map[string]any{
		"type":       frameType,
		"run_id":     d.RunID,
		"instrument": d.Instrument,
		"seq":        d.Seq,
		"timestamp":  d.Report.Timestamp,
		"side":       d.Report.Side.String(),
		"available":  d.Report.Available,
		"income":     d.Report.Income,
	})
	if err != nil {
		return nil, fmt.Errorf("notify: build report frame: %w", err)
	}
	b, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("notify: marshal report frame: %w", err)
	}
	return b, nil
}

// DecodeReportFrame parses a frame produced by EncodeReportFrame.
func DecodeReportFrame(b []byte) (Delivery, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return Delivery{}, fmt.Errorf("notify: unmarshal report frame: %w", err)
	}
	f := st.GetFields()
	if f["type"].GetStringValue() != frameType {
		return Delivery{}, fmt.Errorf("notify: unexpected frame type %q", f["type"].GetStringValue())
	}
	side, ok := domain.ParseSide(f["side"].GetStringValue())
	if !ok {
		return Delivery{}, fmt.Errorf("notify: bad side %q in frame", f["side"].GetStringValue())
	}
	return Delivery{
		RunID:      f["run_id"].GetStringValue(),
		Instrument: f["instrument"].GetStringValue(),
		Seq:        int64(f["seq"].GetNumberValue()),
		Report: domain.Report{
			Timestamp: int64(f["timestamp"].GetNumberValue()),
			Side:      side,
			Available: f["available"].GetBoolValue(),
			Income:    f["income"].GetNumberValue(),
		},
	}, nil
}
