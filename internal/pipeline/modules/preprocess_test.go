package modules

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"govdociq/internal/adapters"
)

type PreprocessSuite struct {
	suite.Suite
	ctx context.Context
	pre *Preprocessor
}

func (s *PreprocessSuite) SetupTest() {
	s.ctx = context.Background()
	s.pre = NewPreprocessor(adapters.NewHeuristicOCR())
}

func TestPreprocessSuite(t *testing.T) {
	suite.Run(t, new(PreprocessSuite))
}

func (s *PreprocessSuite) TestPreprocess() {
	s.Run("normalizes whitespace before hashing", func() {
		a := s.pre.Preprocess(s.ctx, "Name:  Asha\n\nRao")
		b := s.pre.Preprocess(s.ctx, "Name: Asha Rao")
		s.Equal(a.DedupHash, b.DedupHash)
		s.Equal("Name: Asha Rao", a.NormalizedText)
	})

	s.Run("hash is case insensitive", func() {
		a := s.pre.Preprocess(s.ctx, "AADHAAR CARD")
		b := s.pre.Preprocess(s.ctx, "aadhaar card")
		s.Equal(a.DedupHash, b.DedupHash)
	})

	s.Run("quality floors at 0.2 and caps at 1", func() {
		short := s.pre.Preprocess(s.ctx, "x")
		s.InDelta(0.2, short.QualityScore, 1e-9)

		long := s.pre.Preprocess(s.ctx, strings.Repeat("a", 5000))
		s.InDelta(1, long.QualityScore, 1e-9)
	})

	s.Run("noisy short scans flag as handwriting heavy", func() {
		res := s.pre.Preprocess(s.ctx, "~~ @@ ## !! ?? ;; :: ~~")
		s.True(res.HandwritingHeavy)
		s.GreaterOrEqual(res.HandwritingProbability, 0.7)
	})

	s.Run("digit dominated text is not handwriting", func() {
		res := s.pre.Preprocess(s.ctx, "1234 5678 9012 3456 7890 1234")
		s.False(res.HandwritingHeavy)
	})
}

func (s *PreprocessSuite) TestOCRPass() {
	s.Run("detects devanagari script", func() {
		pre := s.pre.Preprocess(s.ctx, "आधार Card Number 1234")
		ocr := s.pre.OCRPass(pre)
		s.Equal("DEVANAGARI", ocr.Script)
	})

	s.Run("defaults to latin", func() {
		pre := s.pre.Preprocess(s.ctx, "Plain english document text")
		ocr := s.pre.OCRPass(pre)
		s.Equal("LATIN", ocr.Script)
	})

	s.Run("confidence floors at 0.45 for nonempty text", func() {
		pre := s.pre.Preprocess(s.ctx, "x")
		ocr := s.pre.OCRPass(pre)
		s.GreaterOrEqual(ocr.Confidence, 0.45)
	})

	s.Run("empty text yields unknown script and zero confidence", func() {
		pre := s.pre.Preprocess(s.ctx, "")
		ocr := s.pre.OCRPass(pre)
		s.Equal("UNKNOWN", ocr.Script)
		s.Zero(ocr.Confidence)
	})
}
