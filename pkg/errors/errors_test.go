package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNew() {
	err := New(KindConfig, "unknown exchange: kraken")
	suite.Equal(KindConfig, err.Kind)
	suite.Equal("unknown exchange: kraken", err.Error())
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewf() {
	err := Newf(KindConfig, "bad timeframe %q", "2m")
	suite.Equal(`bad timeframe "2m"`, err.Message)
}

func (suite *ErrorTestSuite) TestWrap() {
	cause := errors.New("connection refused")
	err := Wrap(KindTransport, "load markets failed", cause)
	suite.Equal("load markets failed: connection refused", err.Error())
	suite.True(errors.Is(err, cause))
}

func (suite *ErrorTestSuite) TestWrapf() {
	cause := errors.New("eof")
	err := Wrapf(KindMalformed, cause, "decode %s", "tickers")
	suite.Equal("decode tickers: eof", err.Error())
}

func (suite *ErrorTestSuite) TestWrapStep() {
	malformed := Wrapf(KindMalformed, errors.New("eof"), "decode %s", "tickers")
	err := WrapStep(KindTransport, "fetch tickers failed", fmt.Errorf("bybit: %w", malformed))
	suite.Equal(KindMalformed, err.Kind)
	suite.Equal("fetch tickers failed: bybit: decode tickers: eof", err.Error())

	err = WrapStep(KindTransport, "load markets failed", errors.New("connection refused"))
	suite.Equal(KindTransport, err.Kind)
}

func (suite *ErrorTestSuite) TestKindThroughFmtWrap() {
	inner := New(KindConfig, "unknown exchange")
	outer := fmt.Errorf("top symbols: %w", inner)
	suite.Equal(KindConfig, KindOf(outer))
	suite.True(IsKind(outer, KindConfig))
	suite.False(IsKind(outer, KindTransport))
}

func (suite *ErrorTestSuite) TestKindOfPlainError() {
	suite.Equal(KindUnknown, KindOf(errors.New("plain")))
	suite.False(IsKind(nil, KindUnknown))
}

func (suite *ErrorTestSuite) TestKindString() {
	suite.Equal("config", KindConfig.String())
	suite.Equal("transport", KindTransport.String())
	suite.Equal("malformed", KindMalformed.String())
	suite.Equal("unknown", Kind(42).String())
}
