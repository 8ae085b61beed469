package dist

import (
	"fmt"

	"github.com/nspcc-dev/clusterlink/pkg/dist/distmetrics"
	"github.com/nspcc-dev/clusterlink/pkg/registry"
	"github.com/nspcc-dev/clusterlink/pkg/term"
	"go.uber.org/zap"
)

// Control tags: the first element of a control tuple in a 'p' message
// (spec.md §3).
const (
	ctrlSend         = 2
	ctrlRegSend      = 6
	ctrlMonitorP     = 19
	ctrlDemonitorP   = 20
	ctrlMonitorPExit = 21
)

func controlTagName(tag int) string {
	switch tag {
	case ctrlSend:
		return "send"
	case ctrlRegSend:
		return "reg_send"
	case ctrlMonitorP:
		return "monitor_p"
	case ctrlDemonitorP:
		return "demonitor_p"
	case ctrlMonitorPExit:
		return "monitor_p_exit"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// dispatchInbound maps a decoded control term (and its optional payload)
// to the matching registry call (spec.md §4.5's inbound table). An error
// return means the shape itself was malformed for a known tag (a
// protocol error that closes the connection); an unrecognized tag is
// logged and dropped without returning an error.
func dispatchInbound(reg registry.Registry, ctrl, payload term.Term, log *zap.Logger) error {
	tuple, ok := ctrl.(term.Tuple)
	if !ok || len(tuple) == 0 {
		return fmt.Errorf("dist: control term is not a non-empty tuple: %#v", ctrl)
	}

	tagInt, ok := tuple[0].(term.Int)
	if !ok {
		return fmt.Errorf("dist: control tag is not an integer: %#v", tuple[0])
	}
	tag := int(tagInt)

	switch tag {
	case ctrlSend, ctrlRegSend:
		if len(tuple) != 4 {
			return fmt.Errorf("dist: %s control arity %d, want 4", controlTagName(tag), len(tuple))
		}
		sender, receiver := tuple[1], tuple[3]
		distmetrics.ControlDispatchedTotal.WithLabelValues(controlTagName(tag)).Inc()
		if err := reg.Send(sender, receiver, payload); err != nil {
			log.Warn("registry rejected send", zap.Error(err))
		}
		return nil

	case ctrlMonitorP:
		if len(tuple) != 4 {
			return fmt.Errorf("dist: monitor_p control arity %d, want 4", len(tuple))
		}
		origin, target := tuple[1], tuple[2]
		distmetrics.ControlDispatchedTotal.WithLabelValues(controlTagName(tag)).Inc()
		if err := reg.MonitorProcess(origin, target); err != nil {
			log.Warn("registry rejected monitor_process", zap.Error(err))
		}
		return nil

	case ctrlDemonitorP:
		if len(tuple) != 4 {
			return fmt.Errorf("dist: demonitor_p control arity %d, want 4", len(tuple))
		}
		origin, target := tuple[1], tuple[2]
		distmetrics.ControlDispatchedTotal.WithLabelValues(controlTagName(tag)).Inc()
		if err := reg.DemonitorProcess(origin, target); err != nil {
			log.Warn("registry rejected demonitor_process", zap.Error(err))
		}
		return nil

	case ctrlMonitorPExit:
		if len(tuple) != 5 {
			return fmt.Errorf("dist: monitor_p_exit control arity %d, want 5", len(tuple))
		}
		from, to, ref, reason := tuple[1], tuple[2], tuple[3], tuple[4]
		distmetrics.ControlDispatchedTotal.WithLabelValues(controlTagName(tag)).Inc()
		if err := reg.DeliverExit(to, from, ref, reason); err != nil {
			log.Warn("registry rejected exit delivery", zap.Error(err))
		}
		return nil

	default:
		log.Warn("unhandled control tag, dropping", zap.Int("tag", tag))
		return nil
	}
}

// encodeOutbound turns a registry.Command into the control term (and
// optional payload term) to send wrapped in a 'p' frame (spec.md §4.5's
// outbound table). ok is false for a command shape this core doesn't
// know how to encode, which is logged and dropped by the caller.
func encodeOutbound(cmd registry.Command) (ctrl term.Term, payload term.Term, hasPayload bool, ok bool) {
	switch cmd.Kind {
	case registry.CommandSend:
		// The control triple omits the sender pid, matching the
		// source's own simplified send command encoding.
		return term.Tuple{term.Int(ctrlSend), term.Atom(""), cmd.Dst}, cmd.Message, true, true

	case registry.CommandMonitorExit:
		ctrl := term.Tuple{
			term.Int(ctrlMonitorPExit),
			cmd.FromPid,
			cmd.ToPid,
			cmd.Ref,
			cmd.Reason,
		}
		return ctrl, nil, false, true

	default:
		return nil, nil, false, false
	}
}
