package aquamarine

// discoverGPUs enumerates candidate GPU device nodes via the session's
// udev handle, filters by seat, and orders them with boot-VGA devices
// at the front (spec.md §4.A). Ties among multiple boot_vga=1 devices
// keep enumeration order among themselves, matching the deque
// push_front/push_back policy the original backend uses
// (SPEC_FULL.md §5).
func discoverGPUs(session Session, seatName string) ([]SessionDevice, error) {
	var front, back []SessionDevice

	for _, dev := range session.Udev() {
		seat, ok := dev.Property("ID_SEAT")
		if !ok {
			seat = "seat0"
		}
		if seat != seatName {
			continue
		}

		node := dev.DevNode()
		if node == "" {
			continue
		}

		sd, err := session.OpenIfKMS(node)
		if err != nil {
			continue
		}

		if dev.IsBootVGA() {
			front = append(front, sd)
		} else {
			back = append(back, sd)
		}
	}

	return append(front, back...), nil
}
