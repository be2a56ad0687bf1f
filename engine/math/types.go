package math

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief a 4x4 row-major matrix; vectors are transformed as rows (v * M). */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/** @brief the upper-left 3x3 part of a transform, used for normal matrices. */
type Mat3 struct {
	Data [9]float32
}
