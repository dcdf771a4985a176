package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"kutter/auth"
	"kutter/domain"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// BaseSuite drives a running chat server over its public websocket and
// its gRPC ops port.
type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ChatAddr == "" {
		s.T().Skip("CHAT_ADDR is not set")
	}
}

func (s *BaseSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// GrpcConn initializes a gRPC connection logging every call
func (s *BaseSuite) GrpcConn(t *testing.T, name string, addr string) *grpc.ClientConn {
	s.header(t, name)

	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))

			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, marshaler.Format(req.(proto.Message)))
				if err != nil {
					fmt.Fprintln(&logBuilder, "ERROR:", err)
				} else {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, marshaler.Format(reply.(proto.Message)))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+addr)
	return conn
}

// WithHealth provides a health client on the ops port within a test step
func (s *BaseSuite) WithHealth(name string, fn func(ctx context.Context, client grpc_health_v1.HealthClient)) {
	if s.Config.OpsAddr == "" {
		s.T().Skip("OPS_ADDR is not set")
	}
	conn := s.GrpcConn(s.T(), name, s.Config.OpsAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, grpc_health_v1.NewHealthClient(conn))
}

// Session is one websocket client of the chat.
type Session struct {
	suite *BaseSuite
	conn  *websocket.Conn
}

// Connect opens a websocket session for identity, authenticated with a
// freshly minted cookie token.
func (s *BaseSuite) Connect(name string, identity domain.Identity) *Session {
	s.header(s.T(), name)
	token, err := auth.GenerateToken([]byte(s.Config.JWTSecret), identity, time.Hour)
	s.Require().NoError(err)

	url := fmt.Sprintf("ws://%s/ws", s.Config.ChatAddr)
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{
		"Cookie": {auth.DefaultCookieName + "=" + token},
	})
	s.Require().NoError(err, "Failed to open websocket at "+url)
	s.Require().Equal(http.StatusSwitchingProtocols, resp.StatusCode)
	return &Session{suite: s, conn: conn}
}

func (c *Session) Send(frame string) {
	c.suite.Require().NoError(c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// Next reads the next frame, failing the step after 5 seconds.
func (c *Session) Next() map[string]any {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, data, err := c.conn.ReadMessage()
	c.suite.Require().NoError(err)
	if c.suite.Config.DebugJSON {
		c.suite.T().Log("FRAME: " + string(data))
	}
	var frame map[string]any
	c.suite.Require().NoError(json.Unmarshal(data, &frame))
	return frame
}

func (c *Session) Close() {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}
