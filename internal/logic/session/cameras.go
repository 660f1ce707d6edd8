package session

import "github.com/cjeanneret/camsession/internal/hw/camera"

// CameraInfo describes one camera for callers choosing what to open.
type CameraInfo struct {
	Name              string `json:"name"`
	LensFacing        string `json:"lensFacing"`
	SensorOrientation int    `json:"sensorOrientation"`
}

// ListCameras returns every camera the registry reports, in registry order.
func ListCameras(reg camera.DeviceRegistry) ([]CameraInfo, error) {
	ids, err := reg.CameraIDs()
	if err != nil {
		return nil, newError(CodeCameraAccess, err.Error(), err)
	}
	cams := make([]CameraInfo, 0, len(ids))
	for _, id := range ids {
		d, err := reg.Descriptor(id)
		if err != nil {
			return nil, newError(CodeCameraAccess, err.Error(), err)
		}
		cams = append(cams, CameraInfo{
			Name:              id,
			LensFacing:        d.Facing.String(),
			SensorOrientation: d.SensorOrientation,
		})
	}
	return cams, nil
}
