// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"fmt"
	"io"
)

// LogLevel controls the verbosity of the iteration log.
type LogLevel int

const (
	LogNoop  LogLevel = -1 // print nothing
	LogLast  LogLevel = 0  // print the final summary only
	LogIter  LogLevel = 1  // print one line per SQP iteration
	LogTrace LogLevel = 99 // print line search and QP details
)

// Logger writes the iteration protocol. Msg receives the per iteration
// lines, Out the final summary. A nil writer suppresses the output.
type Logger struct {
	Level LogLevel
	Msg   io.Writer
	Out   io.Writer
}

func (l *Logger) enable(level LogLevel) bool {
	return l != nil && l.Level >= level
}

func (l *Logger) log(format string, args ...any) {
	if l != nil && l.Msg != nil {
		fmt.Fprintf(l.Msg, format+"\n", args...)
	}
}

func (l *Logger) out(format string, args ...any) {
	if l != nil && l.Out != nil {
		fmt.Fprintf(l.Out, format+"\n", args...)
	}
}

// Progress is a snapshot of one SQP iteration.
type Progress struct {
	It       int
	Obj      float64
	CNorm    float64
	Tol      float64
	Alpha    float64
	NSOCS    int
	Steptype int
}

// Stats accumulates counters over the life of one workspace. Counters
// keep accumulating when Run is called repeatedly on the same workspace.
type Stats struct {
	ItCount      int
	QPIterations int
	QPResolves   int

	NFunCalls int
	NDerCalls int

	HessSkipped         int
	HessDamped          int
	RejectedSR1         int
	AverageSizingFactor float64

	NRestHeurCalls  int
	NRestPhaseCalls int

	// Trace holds one Progress entry per iteration when DebugLevel > 0.
	Trace []Progress

	itSizingFactor float64
	itSizedBlocks  int
}

// header is printed every twenty iteration lines.
const progressHeader = "   it |   obj        feas       opt     |lstep|   alpha  SOC  skip damp"

func (s *Stats) printProgress(log *Logger, it *Iterate, debug int) {
	p := Progress{
		It:       s.ItCount,
		Obj:      it.Obj,
		CNorm:    it.CNormS,
		Tol:      it.Tol,
		Alpha:    it.Alpha,
		NSOCS:    it.NSOCS,
		Steptype: it.Steptype,
	}
	if debug > 0 {
		s.Trace = append(s.Trace, p)
	}
	if !log.enable(LogIter) {
		return
	}
	if s.ItCount%20 == 1 {
		log.log(progressHeader)
	}
	log.log("%5d | %10.3e %9.2e %9.2e %8.1e %7.2f %4d %5d %4d",
		s.ItCount, it.Obj, it.CNormS, it.Tol, it.LambdaStepNorm,
		it.Alpha, it.NSOCS, s.HessSkipped, s.HessDamped)
}

func (s *Stats) printSummary(log *Logger, it *Iterate, status Status) {
	if !log.enable(LogLast) {
		return
	}
	log.out("status:        %v", status)
	log.out("iterations:    %d  (QP resolves %d)", s.ItCount, s.QPResolves)
	log.out("objective:     %.12e", it.Obj)
	log.out("infeasibility: %.3e", it.CNormS)
	log.out("optimality:    %.3e", it.Tol)
	log.out("evaluations:   %d function, %d derivative", s.NFunCalls, s.NDerCalls)
	log.out("hessian:       %d skipped, %d damped, %d SR1 rejected",
		s.HessSkipped, s.HessDamped, s.RejectedSR1)
	if s.NRestPhaseCalls > 0 || s.NRestHeurCalls > 0 {
		log.out("restoration:   %d phases, %d heuristics", s.NRestPhaseCalls, s.NRestHeurCalls)
	}
}
