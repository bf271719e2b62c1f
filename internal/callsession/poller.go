package callsession

import (
	"context"
	"time"
)

// pollPeerStatus is the caller-side discovery loop: an immediate status
// query, then one per poll interval, until the remote party's address AND
// acceptance are both confirmed. An address without acceptance is not a
// success; dialing before the callee accepted is the bug class this
// gate exists for.
//
// Query failures are not session failures: they are logged and retried on
// the next tick. The loop posts exactly one success event and stops; the
// state machine's transition guard rejects any duplicate that slips in
// before the cancellation lands.
func (s *Session) pollPeerStatus(ctx context.Context) {
	t := time.NewTicker(s.pollEvery)
	defer t.Stop()

	for {
		st, err := s.cfg.Status.PeerStatus(ctx, s.cfg.BookingID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			s.log.Debug("peer status query failed", "err", err)
		case st.Accepted && st.RemoteAddress != "":
			s.post(event{kind: evDiscovered, addr: st.RemoteAddress})
			return
		case st.RemoteAddress != "":
			s.log.Debug("peer registered, awaiting acceptance")
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
