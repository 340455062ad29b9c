package attachment

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	qt "github.com/frankban/quicktest"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
)

var now = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// offlinePresigner signs with static keys; presigning never touches the network.
func offlinePresigner(endpoint string) *s3.PresignClient {
	client := s3.New(s3.Options{
		Region:      "eu-west-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: func() *string {
			if endpoint == "" {
				return nil
			}
			return aws.String(endpoint)
		}(),
		UsePathStyle: endpoint != "",
	})
	return s3.NewPresignClient(client)
}

func TestIssueUploadURLVirtualHost(t *testing.T) {
	c := qt.New(t)
	iss, err := NewIssuer(offlinePresigner(""), "todo-attachments", "", 0, testclock.NewClock(now))
	c.Assert(err, qt.IsNil)
	c.Assert(iss.Expiry(), qt.Equals, DefaultExpiry)

	up, err := iss.IssueUploadURL(context.Background(), "t1")
	c.Assert(err, qt.IsNil)
	c.Assert(up.Key, qt.Equals, "t1")
	c.Assert(up.Reference, qt.Equals, "https://todo-attachments.s3.eu-west-1.amazonaws.com/t1")
	c.Assert(up.ExpiresAt, qt.Equals, now.Add(DefaultExpiry))

	u, err := url.Parse(up.URL)
	c.Assert(err, qt.IsNil)
	c.Assert(u.Query().Get("X-Amz-Expires"), qt.Equals, "300")
	c.Assert(u.Query().Get("X-Amz-Signature"), qt.Not(qt.Equals), "")
	c.Assert(strings.HasPrefix(up.URL, up.Reference+"?"), qt.IsTrue)
}

func TestIssueUploadURLPathStyleWithPrefix(t *testing.T) {
	c := qt.New(t)
	iss, err := NewIssuer(offlinePresigner("http://localhost:9000"), "todos", "attachments/", 90*time.Second, testclock.NewClock(now))
	c.Assert(err, qt.IsNil)

	up, err := iss.IssueUploadURL(context.Background(), "t1")
	c.Assert(err, qt.IsNil)
	c.Assert(up.Key, qt.Equals, "attachments/t1")
	c.Assert(up.Reference, qt.Equals, "http://localhost:9000/todos/attachments/t1")

	u, err := url.Parse(up.URL)
	c.Assert(err, qt.IsNil)
	c.Assert(u.Query().Get("X-Amz-Expires"), qt.Equals, "90")
}

func TestIssueUploadURLSameSlot(t *testing.T) {
	c := qt.New(t)
	clk := testclock.NewClock(now)
	iss, err := NewIssuer(offlinePresigner(""), "todo-attachments", "", 0, clk)
	c.Assert(err, qt.IsNil)

	first, err := iss.IssueUploadURL(context.Background(), "t1")
	c.Assert(err, qt.IsNil)
	clk.Advance(time.Minute)
	second, err := iss.IssueUploadURL(context.Background(), "t1")
	c.Assert(err, qt.IsNil)

	c.Assert(second.Key, qt.Equals, first.Key)
	c.Assert(second.Reference, qt.Equals, first.Reference)
	c.Assert(second.ExpiresAt.After(first.ExpiresAt), qt.IsTrue)
}

func TestNewIssuerValidation(t *testing.T) {
	c := qt.New(t)
	_, err := NewIssuer(nil, "b", "", 0, nil)
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
	_, err = NewIssuer(offlinePresigner(""), "", "", 0, nil)
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)

	iss, err := NewIssuer(offlinePresigner(""), "b", "", 0, nil)
	c.Assert(err, qt.IsNil)
	_, err = iss.IssueUploadURL(context.Background(), "")
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
}
