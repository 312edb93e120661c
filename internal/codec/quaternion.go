package codec

import "math"

// quaternions use the "smallest three" scheme packed into 24 bits:
//
//	bits 22-23  index of the largest component (dropped)
//	bit  21     unused
//	bits 14-20  first remaining component
//	bits  7-13  second remaining component
//	bits  0-6   third remaining component
//
// the largest component is forced positive (q and -q are the same rotation)
// and rebuilt from unit length on decode, so the remaining three are bounded
// by 1/sqrt(2).
const (
	quatComponentBits = 7
	quatComponentMax  = 1<<quatComponentBits - 1
	quatBound         = math.Sqrt2 / 2
)

func compressQuaternion(q Quaternion) uint32 {
	c := [4]float64{float64(q.X), float64(q.Y), float64(q.Z), float64(q.W)}

	length := math.Sqrt(c[0]*c[0] + c[1]*c[1] + c[2]*c[2] + c[3]*c[3])
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		c = [4]float64{0, 0, 0, 1}
		length = 1
	}

	largest := 0
	for i := 1; i < 4; i++ {
		if math.Abs(c[i]) > math.Abs(c[largest]) {
			largest = i
		}
	}
	sign := 1.0
	if c[largest] < 0 {
		sign = -1
	}

	packed := uint32(largest) << 22
	shift := 14
	for i := 0; i < 4; i++ {
		if i == largest {
			continue
		}
		packed |= quantize(sign*c[i]/length) << shift
		shift -= quatComponentBits
	}
	return packed
}

func decompressQuaternion(packed uint32) Quaternion {
	largest := int(packed>>22) & 0x3

	var c [4]float64
	sum := 0.0
	shift := 14
	for i := 0; i < 4; i++ {
		if i == largest {
			continue
		}
		c[i] = dequantize((packed >> shift) & quatComponentMax)
		sum += c[i] * c[i]
		shift -= quatComponentBits
	}
	c[largest] = math.Sqrt(math.Max(0, 1-sum))

	return Quaternion{X: float32(c[0]), Y: float32(c[1]), Z: float32(c[2]), W: float32(c[3])}
}

func quantize(v float64) uint32 {
	v = math.Max(-quatBound, math.Min(quatBound, v))
	return uint32(math.Round((v/quatBound + 1) / 2 * quatComponentMax))
}

func dequantize(q uint32) float64 {
	return (float64(q)/quatComponentMax*2 - 1) * quatBound
}
