package detector

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

// detectMethod is the single unary RPC this client calls. The detection
// service is an independently versioned collaborator (spec §1), so the wire
// contract here is a generic structpb.Struct rather than a service-specific
// generated stub: the message shape is documented below, not compiled from a
// .proto this module owns.
//
// request:  {"frame_id": string, "monitor_id": string (omitted when the frame
//            has none), "picture": string (base64 of the encoded image),
//            "picture_type": string}
// response: {"boxes": [{"label": string, "confidence": number,
//            "x0": number, "y0": number, "x1": number, "y1": number}, ...]}
const detectMethod = "/detection.DetectionService/Detect"

// GRPCClient is the production Client, backed by a long-lived gRPC
// connection with keepalive pings so a dead model server is noticed quickly.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// Dial connects to a detection service at endpoint (host:port, plaintext).
func Dial(ctx context.Context, endpoint string) (*GRPCClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("detector: dial %s: %w", endpoint, err)
	}
	return &GRPCClient{conn: conn}, nil
}

// Detect implements Client.
func (c *GRPCClient) Detect(ctx context.Context, frame model.Frame) ([]Box, error) {
	fields := map[string]any{
		"frame_id":     frame.FrameID,
		"picture":      frame.Picture,
		"picture_type": string(frame.PictureType),
	}
	if frame.MonitorID != nil {
		fields["monitor_id"] = *frame.MonitorID
	}

	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("detector: encode request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, detectMethod, req, resp); err != nil {
		return nil, fmt.Errorf("detector: detect %s: %w", frame.FrameID, err)
	}

	return decodeBoxes(resp)
}

func decodeBoxes(resp *structpb.Struct) ([]Box, error) {
	raw, ok := resp.Fields["boxes"]
	if !ok {
		return nil, nil
	}
	list := raw.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("detector: response \"boxes\" is not a list")
	}

	boxes := make([]Box, 0, len(list.Values))
	for _, v := range list.Values {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("detector: response box is not an object")
		}
		boxes = append(boxes, Box{
			Label:      s.Fields["label"].GetStringValue(),
			Confidence: float32(s.Fields["confidence"].GetNumberValue()),
			X0:         int(s.Fields["x0"].GetNumberValue()),
			Y0:         int(s.Fields["y0"].GetNumberValue()),
			X1:         int(s.Fields["x1"].GetNumberValue()),
			Y1:         int(s.Fields["y1"].GetNumberValue()),
		})
	}
	return boxes, nil
}

// Close implements Client.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}
